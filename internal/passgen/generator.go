// Package passgen regenerates a pass bundle from the current loyalty state.
package passgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/loyaltywallet/walletsync/internal/assets"
	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/pkpass"
)

// Errors returned by Generate. Lookup failures wrap ErrNotFound with the
// name of the missing record.
var (
	ErrNotFound       = errors.New("not found")
	ErrAssetRetrieval = errors.New("asset retrieval failed")
)

// ImageFetcher downloads one image into a directory under several names.
type ImageFetcher interface {
	Fetch(ctx context.Context, url, dir string, names ...string) error
}

// BundleBuilder turns pass.json plus a directory of images into a bundle.
type BundleBuilder interface {
	Build(ctx context.Context, p *pkpass.Pass, dir string) ([]byte, error)
}

// Bundle is a rendered pass.
type Bundle struct {
	SerialNumber string
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// Config wires a Generator.
type Config struct {
	TeamIdentifier   string
	OrganizationName string
	WebServiceURL    string

	Loyalty    loyalty.Repository
	Workspaces assets.Allocator
	Fetcher    ImageFetcher
	Builder    BundleBuilder
	Logger     zerolog.Logger
}

// Generator renders passes.
type Generator struct {
	cfg    Config
	tracer trace.Tracer
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, tracer: otel.Tracer("walletsync/passgen")}
}

// Generate renders the current state of identity's card. The workspace is
// held from image download until the bundle is built and released on every
// path.
func (g *Generator) Generate(ctx context.Context, identity *pass.Identity) (_ *Bundle, err error) {
	ctx, span := g.tracer.Start(ctx, "passgen.Generate",
		trace.WithAttributes(attribute.String("pass.serial_number", identity.SerialNumber)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	snapshot, cfg, err := g.lookup(ctx, identity.SerialNumber)
	if err != nil {
		return nil, err
	}

	ws, err := g.cfg.Workspaces.Acquire(ctx, identity.SerialNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetRetrieval, err)
	}
	defer func() {
		if releaseErr := ws.Release(); releaseErr != nil {
			g.cfg.Logger.Warn().Err(releaseErr).Str("dir", ws.Dir).Msg("failed to release workspace")
		}
	}()

	if err := g.fetchImages(ctx, cfg.Appearance, ws.Dir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetRetrieval, err)
	}

	document := g.render(identity, snapshot, cfg)

	data, err := g.cfg.Builder.Build(ctx, document, ws.Dir)
	if err != nil {
		return nil, fmt.Errorf("build bundle: %w", err)
	}

	return &Bundle{
		SerialNumber: identity.SerialNumber,
		Data:         data,
		ContentType:  pkpass.ContentType,
		LastModified: identity.UpdatedAt,
	}, nil
}

func (g *Generator) lookup(ctx context.Context, serial string) (*loyalty.Snapshot, *loyalty.PassConfig, error) {
	snapshot, err := g.cfg.Loyalty.GetSnapshot(ctx, serial)
	if err != nil {
		if errors.Is(err, loyalty.ErrCardNotFound) {
			return nil, nil, fmt.Errorf("%w: loyalty card %s", ErrNotFound, serial)
		}
		return nil, nil, fmt.Errorf("load loyalty card: %w", err)
	}

	cfg, err := g.cfg.Loyalty.GetPassConfig(ctx, snapshot.Customer.BusinessID)
	if err != nil {
		if errors.Is(err, loyalty.ErrConfigNotFound) {
			return nil, nil, fmt.Errorf("%w: pass configuration for business %s", ErrNotFound, snapshot.Customer.BusinessID)
		}
		return nil, nil, fmt.Errorf("load pass configuration: %w", err)
	}

	return snapshot, cfg, nil
}

// fetchImages downloads every configured image in parallel. The first
// failure cancels the rest.
func (g *Generator) fetchImages(ctx context.Context, a loyalty.Appearance, dir string) error {
	images := []struct{ url, base string }{
		{a.LogoURL, "logo"},
		{a.IconURL, "icon"},
		{a.StripImageURL, "strip"},
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, img := range images {
		if img.url == "" {
			continue
		}
		eg.Go(func() error {
			return g.cfg.Fetcher.Fetch(ctx, img.url, dir, img.base+".png", img.base+"@2x.png", img.base+"@3x.png")
		})
	}
	return eg.Wait()
}

func (g *Generator) render(identity *pass.Identity, snapshot *loyalty.Snapshot, cfg *loyalty.PassConfig) *pkpass.Pass {
	src := NewSources(snapshot)
	a := cfg.Appearance

	org := a.OrganizationName
	if org == "" {
		org = g.cfg.OrganizationName
	}
	description := a.Description
	if description == "" {
		description = org + " loyalty card"
	}

	structure, skipped := layout(cfg, src)
	if len(skipped) > 0 {
		g.cfg.Logger.Warn().
			Strs("fields", skipped).
			Str("business_id", cfg.BusinessID).
			Msg("skipping fields with unknown position")
	}

	code := barcode(cfg.Barcode, src, snapshot.Customer.ID)
	locs, distance := locations(cfg, "Show your "+org+" card here")

	p := &pkpass.Pass{
		FormatVersion:       1,
		PassTypeIdentifier:  identity.PassTypeIdentifier,
		SerialNumber:        identity.SerialNumber,
		TeamIdentifier:      g.cfg.TeamIdentifier,
		WebServiceURL:       g.cfg.WebServiceURL,
		AuthenticationToken: identity.AuthenticationToken,
		OrganizationName:    org,
		Description:         description,
		LogoText:            src.Render(a.LogoText),
		BackgroundColor:     color(a.BackgroundColor),
		ForegroundColor:     color(a.ForegroundColor),
		LabelColor:          color(a.LabelColor),
		StoreCard:           structure,
		Barcodes:            []pkpass.Barcode{code},
		Locations:           locs,
		MaxDistance:         distance,
	}
	if code.Format != "PKBarcodeFormatCode128" {
		legacy := code
		p.Barcode = &legacy
	}
	return p
}
