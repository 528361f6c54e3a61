package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ncw/swift/v2"
	"github.com/sirupsen/logrus"

	"github.com/fwiesel/pip-accel/internal/config"
	"github.com/fwiesel/pip-accel/internal/fsutil"
)

// osOptionKeys are the OpenStack session options forwarded to the Swift
// client when they resolve to a value.
var osOptionKeys = []string{
	"auth_token",
	"tenant_name",
	"tenant_id",
	"user_id",
	"username",
	"user_domain_name",
	"user_domain_id",
	"project_name",
	"project_id",
	"project_domain_name",
	"project_domain_id",
	"region_name",
}

// swiftObjectStore is the slice of the Swift API the backend needs.
type swiftObjectStore interface {
	GetObject(ctx context.Context, container, name string, contents io.Writer) error
	PutObject(ctx context.Context, container, name string, contents io.Reader, contentType string) error
}

// SwiftBackend stores distribution archives in an OpenStack Swift container
// and reads through the local binary cache directory. The authenticated
// session is established on first use and reused for the lifetime of the
// backend; it is not safe for concurrent use.
type SwiftBackend struct {
	cfg *config.Provider
	dir string
	log *logrus.Entry

	store swiftObjectStore
	dial  func(ctx context.Context, b *SwiftBackend) (swiftObjectStore, error)
}

func NewSwiftBackend(cfg *config.Provider, log *logrus.Logger) (*SwiftBackend, error) {
	dir, err := cfg.BinaryCacheDir()
	if err != nil {
		return nil, err
	}
	return &SwiftBackend{
		cfg:  cfg,
		dir:  dir,
		log:  log.WithField("backend", "swift"),
		dial: dialSwift,
	}, nil
}

func (b *SwiftBackend) Name() string  { return "swift" }
func (b *SwiftBackend) Priority() int { return SwiftPriority }

// Get returns a local path for the archive. A file already present in the
// binary cache is returned without a remote call; otherwise the object is
// downloaded through a temporary file so the final path is either absent or
// fully written. Any remote client failure, object-not-found included,
// yields an absent result rather than an error.
func (b *SwiftBackend) Get(filename string) (string, error) {
	if err := ValidFilename(filename); err != nil {
		return "", err
	}

	pathname := filepath.Join(b.dir, filename)
	if info, err := os.Stat(pathname); err == nil && info.Mode().IsRegular() {
		b.log.Debugf("Distribution archive exists in local cache (%s).", pathname)
		return pathname, nil
	}

	store, err := b.connection(context.Background())
	if err != nil {
		return "", err
	}
	if err := fsutil.MakeDirs(filepath.Dir(pathname)); err != nil {
		return "", err
	}

	key := b.CacheKey(filename)
	b.log.Infof("Trying to get distribution archive from Swift container: %s", key)

	var remoteErr error
	err = fsutil.AtomicReplace(pathname, func(temporary string) error {
		f, err := os.Create(temporary)
		if err != nil {
			return err
		}
		remoteErr = store.GetObject(context.Background(), b.ContainerName(), key, f)
		closeErr := f.Close()
		if remoteErr != nil {
			return remoteErr
		}
		return closeErr
	})
	if remoteErr != nil {
		b.log.WithError(remoteErr).Debug("Distribution archive not available from Swift container.")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	b.log.Debug("Finished downloading distribution archive from Swift container.")
	return pathname, nil
}

// Put streams the archive to the Swift container. Unlike Get, failures
// propagate to the caller.
func (b *SwiftBackend) Put(filename string, handle io.Reader) error {
	if err := ValidFilename(filename); err != nil {
		return err
	}
	store, err := b.connection(context.Background())
	if err != nil {
		return err
	}
	key := b.CacheKey(filename)
	if err := store.PutObject(context.Background(), b.ContainerName(), key, handle, "application/binary"); err != nil {
		return fmt.Errorf("store distribution archive in Swift container: %w", err)
	}
	b.log.Debug("Finished caching distribution archive in Swift container.")
	return nil
}

// CacheKey composes the object key from the configured prefix and the
// archive filename. Without a prefix the key is the filename verbatim.
func (b *SwiftBackend) CacheKey(filename string) string {
	return joinKey(b.Prefix(), filename)
}

// connection returns the memoized Swift session, dialing on first use. A
// failed dial disables the backend for the rest of the process.
func (b *SwiftBackend) connection(ctx context.Context) (swiftObjectStore, error) {
	if b.store != nil {
		return b.store, nil
	}
	store, err := b.dial(ctx, b)
	if err != nil {
		return nil, &DisabledError{Backend: b.Name(), Err: err}
	}
	b.store = store
	return store, nil
}

func (b *SwiftBackend) Prefix() string {
	return b.cfg.Get("swift_cache_prefix", "PIP_SWIFT_CACHE_PREFIX", "")
}

func (b *SwiftBackend) ContainerName() string {
	return b.cfg.Get("swift_cache_container_name", "PIP_SWIFT_CACHE_CONTAINER_NAME", "")
}

func (b *SwiftBackend) Username() string { return b.osOption("username", "") }
func (b *SwiftBackend) Password() string { return b.osOption("password", "") }
func (b *SwiftBackend) AuthURL() string  { return b.osOption("auth_url", "") }

func (b *SwiftBackend) AuthVersion() string {
	return b.osOption("identity_api_version", "3")
}

// OSOptions filters the allow-listed OpenStack options down to those that
// resolve to a value.
func (b *SwiftBackend) OSOptions() map[string]string {
	options := map[string]string{}
	for _, key := range osOptionKeys {
		if value, ok := b.osLookup(key); ok {
			options[key] = value
		}
	}
	return options
}

func (b *SwiftBackend) osOption(name, defaultValue string) string {
	if value, ok := b.osLookup(name); ok {
		return value
	}
	return defaultValue
}

func (b *SwiftBackend) osLookup(name string) (string, bool) {
	return b.cfg.Lookup("os_"+name, "OS_"+strings.ToUpper(name))
}

func dialSwift(ctx context.Context, b *SwiftBackend) (swiftObjectStore, error) {
	version, err := strconv.Atoi(b.AuthVersion())
	if err != nil {
		return nil, fmt.Errorf("parse os_identity_api_version: %w", err)
	}
	conn := &swift.Connection{
		UserName:    b.Username(),
		ApiKey:      b.Password(),
		AuthUrl:     b.AuthURL(),
		AuthVersion: version,
	}
	applyOSOptions(conn, b.OSOptions())
	if err := conn.Authenticate(ctx); err != nil {
		return nil, err
	}
	return &swiftConnection{conn: conn}, nil
}

// applyOSOptions maps resolved OpenStack options onto the client session.
func applyOSOptions(conn *swift.Connection, options map[string]string) {
	for key, value := range options {
		switch key {
		case "auth_token":
			conn.AuthToken = value
		case "tenant_name", "project_name":
			conn.Tenant = value
		case "tenant_id", "project_id":
			conn.TenantId = value
		case "user_id":
			conn.UserId = value
		case "username":
			conn.UserName = value
		case "user_domain_name":
			conn.Domain = value
		case "user_domain_id":
			conn.DomainId = value
		case "project_domain_name":
			conn.TenantDomain = value
		case "project_domain_id":
			conn.TenantDomainId = value
		case "region_name":
			conn.Region = value
		}
	}
}

// swiftConnection adapts *swift.Connection to swiftObjectStore.
type swiftConnection struct {
	conn *swift.Connection
}

func (c *swiftConnection) GetObject(ctx context.Context, container, name string, contents io.Writer) error {
	_, err := c.conn.ObjectGet(ctx, container, name, contents, false, nil)
	return err
}

func (c *swiftConnection) PutObject(ctx context.Context, container, name string, contents io.Reader, contentType string) error {
	_, err := c.conn.ObjectPut(ctx, container, name, contents, false, "", contentType, nil)
	return err
}
