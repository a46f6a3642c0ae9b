package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupons-api/internal/app"
	"github.com/xenking/coupons-api/internal/domain/coupon"
	"github.com/xenking/coupons-api/internal/domain/discount"
	"github.com/xenking/coupons-api/internal/service"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 10_000
)

// record is one valid coupon read from an import file.
type record struct {
	draft       coupon.Draft
	fingerprint string
}

// fileResult holds what a single file contributed.
type fileResult struct {
	records []record
	invalid int
}

type stats struct {
	read       int
	invalid    int
	duplicates int
	created    int
}

func main() {
	var (
		cfg    app.StorageConfig
		dryRun bool
	)

	flag.StringVar(&cfg.Driver, "driver", app.DriverPostgres, "coupon store: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", "coupons", "MongoDB database name")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and deduplicate without writing")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-import [flags] FILE.ndjson.gz...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGODB_URI")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, flag.Args(), dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, cfg app.StorageConfig, files []string, dryRun bool) error {
	slog.Info("reading import files", slog.Int("files", len(files)))

	records, st, err := readFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read files")
	}

	slog.Info("connecting to coupon store", slog.String("driver", cfg.Driver))

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeStore()

	svc, err := service.New(store, discount.NewEngine())
	if err != nil {
		return errors.Wrap(err, "create service")
	}

	if err := importRecords(ctx, svc, records, &st, dryRun); err != nil {
		return errors.Wrap(err, "import coupons")
	}

	slog.Info("import summary",
		slog.Int("read", st.read),
		slog.Int("invalid", st.invalid),
		slog.Int("duplicates", st.duplicates),
		slog.Int("created", st.created),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}

// readFiles decodes the files concurrently and returns their valid records
// in file order.
func readFiles(ctx context.Context, files []string) ([]record, stats, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := readFile(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "file %s", f)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats{}, err
	}

	var (
		records []record
		st      stats
	)
	for _, r := range results {
		records = append(records, r.records...)
		st.read += len(r.records) + r.invalid
		st.invalid += r.invalid
	}
	return records, st, nil
}

// readFile streams one gzip-compressed NDJSON file. Lines that fail to decode
// or validate are logged and counted, not fatal.
func readFile(ctx context.Context, path string) (fileResult, error) {
	var res fileResult

	f, err := os.Open(path)
	if err != nil {
		return res, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return res, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		rec, problems := decodeRecord(data)
		if len(problems) > 0 {
			res.invalid++
			slog.Warn("skipping invalid coupon",
				slog.String("file", path),
				slog.Int("line", line),
				slog.Any("errors", problems),
			)
			continue
		}
		res.records = append(res.records, rec)

		if line%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", path), slog.Int("lines", line))
		}
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file read",
		slog.String("file", path),
		slog.Int("valid", len(res.records)),
		slog.Int("invalid", res.invalid),
	)
	return res, nil
}

func decodeRecord(data []byte) (record, []string) {
	draft, problems, err := coupon.DecodeDraft(jx.DecodeBytes(data))
	if err != nil {
		return record{}, []string{err.Error()}
	}
	if len(problems) > 0 {
		return record{}, problems
	}

	var details coupon.Details
	if draft.Details != nil {
		details = draft.Details.Resolve(draft.Type)
	}
	if res := coupon.ValidateCoupon(draft.Type, details); !res.IsValid {
		return record{}, res.Errors
	}
	return record{draft: draft, fingerprint: fingerprint(draft.Type, details)}, nil
}

// fingerprint identifies a coupon by its type and canonical details encoding.
func fingerprint(t coupon.Type, details coupon.Details) string {
	return string(t) + " " + string(coupon.MarshalDetails(details))
}

// dedup tracks known fingerprints. The bloom filter answers most lookups; a
// hit is confirmed against this run's imports and then against the exact
// fingerprints of that coupon type, loaded from the store on first use.
type dedup struct {
	svc    *service.Service
	filter *bloom.BloomFilter
	batch  map[string]struct{}
	exact  map[coupon.Type]map[string]struct{}
}

func newDedup(ctx context.Context, svc *service.Service, incoming int) (*dedup, error) {
	existing, err := svc.List(ctx, coupon.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "list existing coupons")
	}

	d := &dedup{
		svc:    svc,
		filter: bloom.NewWithEstimates(uint(max(1, len(existing)+incoming)), bloomFPR),
		batch:  make(map[string]struct{}),
		exact:  make(map[coupon.Type]map[string]struct{}),
	}
	for _, c := range existing {
		if c.Details == nil {
			continue
		}
		d.filter.AddString(fingerprint(c.Type, c.Details))
	}
	return d, nil
}

func (d *dedup) seen(ctx context.Context, t coupon.Type, fp string) (bool, error) {
	if !d.filter.TestString(fp) {
		return false, nil
	}
	if _, ok := d.batch[fp]; ok {
		return true, nil
	}
	set, err := d.typeSet(ctx, t)
	if err != nil {
		return false, err
	}
	_, ok := set[fp]
	return ok, nil
}

func (d *dedup) add(fp string) {
	d.filter.AddString(fp)
	d.batch[fp] = struct{}{}
}

func (d *dedup) typeSet(ctx context.Context, t coupon.Type) (map[string]struct{}, error) {
	if set, ok := d.exact[t]; ok {
		return set, nil
	}
	coupons, err := d.svc.List(ctx, coupon.Filter{Type: &t})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s coupons", t)
	}
	set := make(map[string]struct{}, len(coupons))
	for _, c := range coupons {
		if c.Details != nil {
			set[fingerprint(c.Type, c.Details)] = struct{}{}
		}
	}
	d.exact[t] = set
	return set, nil
}

// importRecords creates every record whose fingerprint is not already known.
func importRecords(ctx context.Context, svc *service.Service, records []record, st *stats, dryRun bool) error {
	d, err := newDedup(ctx, svc, len(records))
	if err != nil {
		return err
	}

	for _, rec := range records {
		t := rec.draft.Type
		dup, err := d.seen(ctx, t, rec.fingerprint)
		if err != nil {
			return err
		}
		if dup {
			st.duplicates++
			continue
		}

		if !dryRun {
			if _, err := svc.Create(ctx, rec.draft); err != nil {
				return errors.Wrapf(err, "create %s coupon", t)
			}
		}
		d.add(rec.fingerprint)
		st.created++
	}
	return nil
}
