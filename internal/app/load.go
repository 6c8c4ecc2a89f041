package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maestro-ngs/maestro/internal/builder"
	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/document"
	"github.com/maestro-ngs/maestro/internal/eap"
	"github.com/maestro-ngs/maestro/internal/hcldoc"
	"github.com/maestro-ngs/maestro/internal/model"
)

// LoadApplication decodes the named protocol file and builds the typed
// application. The decoder is chosen by the file extension.
func LoadApplication(ctx context.Context, path string) (*model.Application, error) {
	logger := ctxlog.FromContext(ctx)

	var (
		doc *document.Node
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eap":
		doc, err = eap.LoadFile(path)
	case ".hcl":
		doc, err = hcldoc.NewLoader().LoadFile(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported file type %q: expected .eap or .hcl", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Protocol file decoded.", "path", path)

	app, err := builder.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build application from %s: %w", path, err)
	}
	logger.Debug("Application built.", "name", app.Name())
	return app, nil
}
