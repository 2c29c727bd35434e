// pkg/appconfig/template.go

package appconfig

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/agms/config"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// EnsureFromTemplate materializes target from template the first time it is
// called. An existing target is never touched, so repeated calls are no-ops.
// When template is absent the shipped default template is written instead.
func EnsureFromTemplate(ctx context.Context, template, target string) (bool, error) {
	log := otelzap.Ctx(ctx)

	if _, err := os.Stat(target); err == nil {
		log.Debug("Configuration already present", zap.String("path", target))
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, cerr.Wrapf(err, "stat %s", target)
	}

	src, err := templateSource(template)
	if err != nil {
		return false, err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), shared.DirPermStandard); err != nil {
		return false, cerr.Wrap(err, "create config directory")
	}

	// O_EXCL keeps a concurrent bootstrap from clobbering the first copy.
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, shared.FilePermOwnerReadWrite)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, cerr.Wrapf(err, "create %s", target)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(target)
		return false, cerr.Wrapf(err, "copy template into %s", target)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(target)
		return false, cerr.Wrapf(err, "close %s", target)
	}

	log.Info("Configuration created from template",
		zap.String("template", template),
		zap.String("path", target))
	return true, nil
}

func templateSource(template string) (io.ReadCloser, error) {
	f, err := os.Open(template)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, cerr.Wrapf(err, "open template %s", template)
	}
	return io.NopCloser(bytes.NewReader(config.Template)), nil
}
