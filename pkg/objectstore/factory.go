package objectstore

import "fmt"

// Config selects and configures a store backend.
type Config struct {
	// Type is one of "memory", "filesystem", "s3".
	Type string

	// RootPath is the local directory for the filesystem backend.
	RootPath string

	// S3 backend settings.
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// New builds a store from the config. The returned store is wrapped
// with Prometheus instrumentation.
func New(cfg Config) (Store, error) {
	inner, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(inner), nil
}

func newBackend(cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.RootPath == "" {
			return nil, fmt.Errorf("filesystem store requires a root path")
		}
		return NewFSStore(cfg.RootPath)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 store requires a bucket")
		}
		return NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown object store type %q", cfg.Type)
	}
}
