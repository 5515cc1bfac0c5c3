package passgen_test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltywallet/walletsync/internal/assets"
	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/passgen"
	"github.com/loyaltywallet/walletsync/internal/pkpass"
)

// captureBuilder records the rendered pass and returns the logo bytes found
// in the workspace at build time as the bundle.
type captureBuilder struct {
	mu     sync.Mutex
	passes map[string]*pkpass.Pass
	calls  int
}

func (b *captureBuilder) Build(_ context.Context, p *pkpass.Pass, dir string) ([]byte, error) {
	logo, err := os.ReadFile(filepath.Join(dir, "logo@2x.png"))
	if err != nil {
		return nil, err
	}
	time.Sleep(time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.passes == nil {
		b.passes = make(map[string]*pkpass.Pass)
	}
	b.passes[p.SerialNumber] = p
	b.calls++
	return logo, nil
}

func ptr(f float64) *float64 { return &f }

func imageServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		time.Sleep(delay)
		_, _ = w.Write([]byte("image:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func seed(repo *loyalty.InMemoryRepository, serial, business, logoURL string) {
	repo.PutCustomer(loyalty.Customer{ID: "cust-" + serial, FullName: "Customer " + serial, BusinessID: business})
	repo.PutCard(loyalty.Card{CardNumber: serial, CustomerID: "cust-" + serial, CurrentPoints: 42, CurrentStamps: 3})
	repo.PutPassConfig(loyalty.PassConfig{
		BusinessID: business,
		Appearance: loyalty.Appearance{
			OrganizationName: "Coffee " + business,
			BackgroundColor:  "#102030",
			ForegroundColor:  "#fff",
			LabelColor:       "rgb(1, 2, 3)",
			LogoText:         "{{customers.full_name}}",
			LogoURL:          logoURL,
		},
		MemberFields: []loyalty.FieldConfig{
			{Key: "points", Label: "Points", Value: "{{loyalty_cards.current_points}}", Position: "primary"},
			{Key: "name", Label: "Member", Value: "{{customers.full_name}}", Position: "secondary"},
			{Key: "name", Label: "Again", Value: "dup", Position: "auxiliary"},
			{Key: "bogus", Value: "x", Position: "footer"},
		},
		CustomFields: []loyalty.FieldConfig{
			{Key: "stamps", Label: "Stamps", Value: "{{loyalty_cards.current_stamps}}", Position: "header"},
		},
		LinkFields: []loyalty.LinkConfig{{Key: "site", Label: "Website", URL: "https://coffee.example"}},
		Locations: []loyalty.LocationConfig{
			{Latitude: ptr(52.37), Longitude: ptr(4.89), RelevantText: "Your coffee awaits"},
			{Latitude: ptr(52.1)},
			{Latitude: ptr(math.Inf(1)), Longitude: ptr(4.0)},
			{Latitude: ptr(120), Longitude: ptr(4.0)},
			{Latitude: ptr(51.9), Longitude: ptr(4.4)},
		},
	})
}

func identity(serial string) *pass.Identity {
	return &pass.Identity{
		PassTypeIdentifier:  "pass.com.example.loyalty",
		SerialNumber:        serial,
		AuthenticationToken: "token-" + serial,
		UpdatedAt:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newGenerator(t *testing.T, repo loyalty.Repository, alloc assets.Allocator, builder passgen.BundleBuilder) *passgen.Generator {
	t.Helper()
	return passgen.NewGenerator(passgen.Config{
		TeamIdentifier:   "TEAM123",
		OrganizationName: "Fallback Org",
		WebServiceURL:    "https://wallet.example.com",
		Loyalty:          repo,
		Workspaces:       alloc,
		Fetcher:          assets.NewFetcher(http.DefaultClient, 2*time.Second),
		Builder:          builder,
		Logger:           zerolog.Nop(),
	})
}

func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.png"), []byte("icon"), 0o600))
	return dir
}

func TestGenerate_RendersPass(t *testing.T) {
	images := imageServer(t, 0)
	repo := loyalty.NewInMemoryRepository()
	seed(repo, "S123", "biz-1", images.URL+"/logo-a.png")
	builder := &captureBuilder{}
	root := t.TempDir()
	gen := newGenerator(t, repo, assets.NewPrivateAllocator(templateDir(t), root), builder)

	bundle, err := gen.Generate(context.Background(), identity("S123"))
	require.NoError(t, err)

	assert.Equal(t, pkpass.ContentType, bundle.ContentType)
	assert.True(t, bundle.LastModified.Equal(identity("S123").UpdatedAt))
	assert.Equal(t, "image:/logo-a.png", string(bundle.Data))

	p := builder.passes["S123"]
	require.NotNil(t, p)
	assert.Equal(t, "TEAM123", p.TeamIdentifier)
	assert.Equal(t, "https://wallet.example.com", p.WebServiceURL)
	assert.Equal(t, "token-S123", p.AuthenticationToken)
	assert.Equal(t, "Coffee biz-1", p.OrganizationName)
	assert.Equal(t, "Customer S123", p.LogoText)
	assert.Equal(t, "rgb(16, 32, 48)", p.BackgroundColor)
	assert.Equal(t, "rgb(255, 255, 255)", p.ForegroundColor)
	assert.Equal(t, "rgb(1, 2, 3)", p.LabelColor)

	require.Len(t, p.StoreCard.PrimaryFields, 1)
	assert.Equal(t, int64(42), p.StoreCard.PrimaryFields[0].Value)
	require.Len(t, p.StoreCard.HeaderFields, 1)
	assert.Equal(t, int64(3), p.StoreCard.HeaderFields[0].Value)
	require.Len(t, p.StoreCard.SecondaryFields, 1)
	assert.Equal(t, "Customer S123", p.StoreCard.SecondaryFields[0].Value)
	require.Len(t, p.StoreCard.AuxiliaryFields, 1)
	assert.Equal(t, "name_2", p.StoreCard.AuxiliaryFields[0].Key, "duplicate keys are made unique")
	require.Len(t, p.StoreCard.BackFields, 1)
	assert.Equal(t, "https://coffee.example", p.StoreCard.BackFields[0].Value)

	require.Len(t, p.Barcodes, 1)
	assert.Equal(t, "cust-S123", p.Barcodes[0].Message, "barcode defaults to the customer id")
	assert.Equal(t, "PKBarcodeFormatQR", p.Barcodes[0].Format)
	assert.Equal(t, "iso-8859-1", p.Barcodes[0].MessageEncoding)

	require.Len(t, p.Locations, 2)
	assert.Equal(t, "Your coffee awaits", p.Locations[0].RelevantText)
	assert.Equal(t, "Show your Coffee biz-1 card here", p.Locations[1].RelevantText)
	assert.Equal(t, passgen.DefaultMaxDistance, p.MaxDistance)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "private workspace is removed after the build")
}

func TestGenerate_CapsLocationsAndKeepsMaxDistance(t *testing.T) {
	repo := loyalty.NewInMemoryRepository()
	seed(repo, "S1", "biz-1", "")
	cfg, _ := repo.GetPassConfig(context.Background(), "biz-1")
	cfg.Locations = nil
	for i := 0; i < 15; i++ {
		cfg.Locations = append(cfg.Locations, loyalty.LocationConfig{Latitude: ptr(float64(i)), Longitude: ptr(1)})
	}
	cfg.MaxDistance = ptr(250)
	cfg.Appearance.LogoURL = ""
	repo.PutPassConfig(*cfg)

	builder := &captureBuilder{}
	tmpl := templateDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "logo@2x.png"), []byte("default"), 0o600))
	gen := newGenerator(t, repo, assets.NewPrivateAllocator(tmpl, t.TempDir()), builder)

	_, err := gen.Generate(context.Background(), identity("S1"))
	require.NoError(t, err)

	p := builder.passes["S1"]
	assert.Len(t, p.Locations, passgen.MaxLocations)
	assert.Equal(t, 250.0, p.MaxDistance)
}

func TestGenerate_MissingRecords(t *testing.T) {
	repo := loyalty.NewInMemoryRepository()
	repo.PutCustomer(loyalty.Customer{ID: "c1", BusinessID: "no-config"})
	repo.PutCard(loyalty.Card{CardNumber: "S-NOCFG", CustomerID: "c1"})

	builder := &captureBuilder{}
	gen := newGenerator(t, repo, assets.NewPrivateAllocator(templateDir(t), t.TempDir()), builder)

	_, err := gen.Generate(context.Background(), identity("S-UNKNOWN"))
	assert.ErrorIs(t, err, passgen.ErrNotFound)
	assert.ErrorContains(t, err, "loyalty card")

	_, err = gen.Generate(context.Background(), identity("S-NOCFG"))
	assert.ErrorIs(t, err, passgen.ErrNotFound)
	assert.ErrorContains(t, err, "pass configuration")

	assert.Zero(t, builder.calls)
}

func TestGenerate_AssetFailureAborts(t *testing.T) {
	images := imageServer(t, 0)
	repo := loyalty.NewInMemoryRepository()
	seed(repo, "S1", "biz-1", images.URL+"/missing/logo.png")

	builder := &captureBuilder{}
	root := t.TempDir()
	gen := newGenerator(t, repo, assets.NewPrivateAllocator(templateDir(t), root), builder)

	_, err := gen.Generate(context.Background(), identity("S1"))

	assert.ErrorIs(t, err, passgen.ErrAssetRetrieval)
	assert.ErrorIs(t, err, assets.ErrFetch)
	assert.Zero(t, builder.calls, "no bundle is built from an incomplete image set")
	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestGenerate_ConcurrentRequestsNeverMixImages(t *testing.T) {
	allocators := map[string]func(t *testing.T) assets.Allocator{
		"private": func(t *testing.T) assets.Allocator {
			return assets.NewPrivateAllocator(templateDir(t), t.TempDir())
		},
		"shared": func(t *testing.T) assets.Allocator {
			return assets.NewSharedAllocator(templateDir(t), filepath.Join(t.TempDir(), "work"), assets.NewKeyedMutex())
		},
	}

	for name, newAlloc := range allocators {
		t.Run(name, func(t *testing.T) {
			images := imageServer(t, 3*time.Millisecond)
			repo := loyalty.NewInMemoryRepository()
			const n = 8
			for i := 0; i < n; i++ {
				serial := fmt.Sprintf("S%d", i)
				seed(repo, serial, "biz-"+serial, fmt.Sprintf("%s/logo-%d.png", images.URL, i))
			}
			gen := newGenerator(t, repo, newAlloc(t), &captureBuilder{})

			var wg sync.WaitGroup
			errs := make([]error, n)
			bundles := make([]*passgen.Bundle, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					bundles[i], errs[i] = gen.Generate(context.Background(), identity(fmt.Sprintf("S%d", i)))
				}(i)
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				want := sha256.Sum256([]byte(fmt.Sprintf("image:/logo-%d.png", i)))
				assert.Equal(t, want, sha256.Sum256(bundles[i].Data), "bundle %d embeds a foreign image", i)
			}
		})
	}
}

func TestGenerate_WithBundleBuilder(t *testing.T) {
	images := imageServer(t, 0)
	repo := loyalty.NewInMemoryRepository()
	seed(repo, "S1", "biz-1", images.URL+"/logo.png")

	signer := signerFunc(func([]byte) ([]byte, error) { return []byte("sig"), nil })
	gen := newGenerator(t, repo, assets.NewPrivateAllocator(templateDir(t), t.TempDir()), pkpass.NewBuilder(signer))

	bundle, err := gen.Generate(context.Background(), identity("S1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), bundle.Data[:2], "bundle is a zip archive")
}

type signerFunc func([]byte) ([]byte, error)

func (f signerFunc) Sign(m []byte) ([]byte, error) { return f(m) }
