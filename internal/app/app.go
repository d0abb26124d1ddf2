package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pagevault/internal/blob"
	"pagevault/internal/catalog"
	"pagevault/internal/config"
	"pagevault/internal/encryption"
	"pagevault/internal/fs"
	"pagevault/internal/pv"
)

// PassphraseFunc supplies the passphrase protecting the private key.
// It is only called when encrypted content has to be read.
type PassphraseFunc func() (string, error)

// Options tune how a PVApp talks to the terminal.
type Options struct {
	Passphrase PassphraseFunc
	Console    io.Writer  // log output besides the log file; defaults to os.Stderr
	LogLevel   slog.Level // minimum level written to Console
}

// PVApp is the application layer between the CLI and ProjectService.
// It constructs all dependencies from config, accepts raw CLI arguments
// such as "<project>_<version>" references and directory paths, and
// releases the catalog and log file on Close.
type PVApp struct {
	cfg       *config.Config
	catalog   pv.Catalog
	store     pv.BlobStore
	encryptor pv.Encryptor
	fsmgr     *fs.OSFilesystemManager
	service   *pv.ProjectService
	op        *Operation
	logger    *slog.Logger
	logFile   io.Closer
}

// NewPVApp creates a fully wired PVApp from the given config.
// operation names the CLI command being run (e.g. "CreateProject", "PutPage").
// The caller must call Close when done.
func NewPVApp(ctx context.Context, cfg *config.Config, operation string, args []string, opts Options) (*PVApp, error) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	op := NewOperation(operation, args, time.Now())

	logger, logFile, err := newLogger(cfg.LogDir, cfg.Log, op.ID, opts.Console, opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := blob.NewStoreFromConfig(ctx, cfg.Blobs)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	if cfg.Blobs.Encrypted {
		store = blob.NewEncryptedStore(store, enc, unlocker(enc, opts.Passphrase))
	}

	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	pvLogger := &slogAdapter{l: logger}
	svc := pv.NewProjectService(pv.NewBlobs(store, pvLogger), cat, pvLogger, pv.RealClock{}, pv.RandomTokenGenerator{})

	logger.Debug("operation started", "operation", op.Name, "args", op.Args)

	return &PVApp{
		cfg:       cfg,
		catalog:   cat,
		store:     store,
		encryptor: enc,
		fsmgr:     fs.NewOSFilesystemManager(cfg.Import.Ignore),
		service:   svc,
		op:        op,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// unlocker adapts a PassphraseFunc into the blob store's UnlockFunc.
func unlocker(enc pv.Encryptor, passphrase PassphraseFunc) blob.UnlockFunc {
	return func() (pv.DecryptionContext, error) {
		if passphrase == nil {
			return nil, errors.New("content is encrypted and no passphrase source is available")
		}
		p, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return enc.Unlock(p)
	}
}

// track marks the operation failed if err is non-nil and returns err.
func (a *PVApp) track(err error) error {
	if err != nil {
		a.op.Fail()
		a.logger.Error("operation failed", "operation", a.op.Name, "error", err)
	}
	return err
}

// CreateProject creates a project from the given pages.
func (a *PVApp) CreateProject(ctx context.Context, name string, pages []pv.PageInput) (*pv.Project, error) {
	p, err := a.service.CreateProject(ctx, name, pages)
	return p, a.track(err)
}

// LoadProject resolves a "<project>[_<version>]" reference.
func (a *PVApp) LoadProject(ctx context.Context, ref string) (*pv.Project, error) {
	name, version := pv.ParseRef(ref)
	p, err := a.service.LoadProject(ctx, name, version)
	return p, a.track(err)
}

// ListProjects lists the latest version of every project, or every version
// when includeVersions is set.
func (a *PVApp) ListProjects(ctx context.Context, includeVersions bool) ([]*pv.Project, error) {
	ps, err := a.service.ListProjects(ctx, includeVersions)
	return ps, a.track(err)
}

// ListProjectVersions returns the version tokens of a project, newest first.
func (a *PVApp) ListProjectVersions(ctx context.Context, name string) ([]string, error) {
	vs, err := a.service.ListProjectVersions(ctx, name)
	return vs, a.track(err)
}

// PutPage creates or replaces a page in the latest version of project.
func (a *PVApp) PutPage(ctx context.Context, project, page string, content []byte) (*pv.Project, error) {
	p, err := a.service.CreateOrUpdatePage(ctx, project, page, content)
	return p, a.track(err)
}

// DeletePage removes a page from the latest version of project.
func (a *PVApp) DeletePage(ctx context.Context, project, page string) (*pv.Project, error) {
	p, err := a.service.DeletePage(ctx, project, page)
	return p, a.track(err)
}

// ReadPage returns a page of the referenced project version with its content.
// An empty page reads the default page.
func (a *PVApp) ReadPage(ctx context.Context, ref, page string) (*pv.Page, []byte, error) {
	name, version := pv.ParseRef(ref)
	pg, content, err := a.service.ReadPage(ctx, name, page, version)
	return pg, content, a.track(err)
}

// LoadContent returns the blob stored under checksum.
func (a *PVApp) LoadContent(ctx context.Context, project, checksum string) ([]byte, error) {
	data, err := a.service.LoadContent(ctx, project, checksum)
	return data, a.track(err)
}

// ImportDirectory creates a project named after dir with one page per file
// directly inside it.
func (a *PVApp) ImportDirectory(ctx context.Context, rawPath string) (*pv.Project, error) {
	p, err := a.importDirectory(ctx, rawPath)
	return p, a.track(err)
}

func (a *PVApp) importDirectory(ctx context.Context, rawPath string) (*pv.Project, error) {
	dir, err := a.fsmgr.ResolveDir(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	files, err := a.fsmgr.FindPages(dir)
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	pages := make([]pv.PageInput, 0, len(files))
	for _, f := range files {
		content, err := a.fsmgr.ReadFile(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, pv.PageInput{Name: f.PageName, Content: content})
	}

	name := fs.ProjectName(dir)
	a.logger.Info("importing directory", "dir", dir, "project", name, "files", len(files))
	return a.service.CreateProject(ctx, name, pages)
}

// catalogBackup is implemented by catalogs that can copy themselves to a file.
type catalogBackup interface {
	BackupTo(ctx context.Context, destPath string) error
}

// BackupCatalog writes a consistent copy of the catalog database to
// destPath. Only the sqlite catalog supports it.
func (a *PVApp) BackupCatalog(ctx context.Context, destPath string) (string, error) {
	b, ok := a.catalog.(catalogBackup)
	if !ok {
		return "", a.track(fmt.Errorf("catalog type %q does not support backup", a.cfg.Catalog.Type))
	}

	dest, err := filepath.Abs(destPath)
	if err != nil {
		return "", a.track(fmt.Errorf("resolving path: %w", err))
	}
	if _, err := os.Stat(dest); err == nil {
		return "", a.track(fmt.Errorf("%w: %s", pv.ErrAlreadyExists, dest))
	}

	if err := b.BackupTo(ctx, dest); err != nil {
		return "", a.track(err)
	}
	a.logger.Info("catalog backed up", "dest", dest)
	return dest, nil
}

// SetupEncryption generates the key pair used for encrypted content.
func (a *PVApp) SetupEncryption(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return a.track(fmt.Errorf("setting up encryption: %w", err))
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// ValidateSetup checks that the configured blob store is reachable.
func (a *PVApp) ValidateSetup(ctx context.Context) error {
	return a.track(a.store.ValidateSetup(ctx))
}

// Close logs the operation outcome and releases the catalog and log file.
func (a *PVApp) Close() error {
	var firstErr error

	a.logger.Debug("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond))

	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
