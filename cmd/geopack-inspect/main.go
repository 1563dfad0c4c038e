// geopack-inspect dumps dataset documents and decodes individual pack
// records, for poking at a dataset without running the daemon
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"geopack/internal/adapters/packstore"
	"geopack/internal/core/bucket"
	"geopack/internal/core/dataset"
	"geopack/internal/core/packfmt"
	"geopack/internal/platform/config"

	locmod "geopack/internal/services/locations/module"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		flagManifest = flag.Bool("manifest", false, "dump the dataset manifest")
		flagCountry  = flag.String("country", "", "dump one country's index, e.g. FR")
		flagRecord   = flag.String("record", "", "decode one record: CC:bucket:index, e.g. FR:B4_S0:120")
	)
	flag.Parse()

	opts := locmod.FromConfig(config.New())
	var backend packstore.Backend
	if strings.HasPrefix(opts.Base, "http://") || strings.HasPrefix(opts.Base, "https://") {
		backend = packstore.NewHTTP(packstore.HTTPOptions{
			BaseURL: opts.Base,
			Version: opts.Version,
			Timeout: opts.Timeout,
		})
	} else {
		backend = packstore.NewFS(opts.Base, opts.Version)
	}
	ctx := context.Background()

	switch {
	case *flagManifest:
		m, err := backend.FetchManifest(ctx)
		if err != nil {
			log.Fatalf("fetch manifest: %v", err)
		}
		dump(m)
	case *flagCountry != "":
		idx, err := backend.FetchCountryIndex(ctx, strings.ToUpper(*flagCountry))
		if err != nil {
			log.Fatalf("fetch index: %v", err)
		}
		dump(idx)
	case *flagRecord != "":
		dumpRecord(ctx, backend, *flagRecord)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func dumpRecord(ctx context.Context, backend packstore.Backend, spec string) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		log.Fatalf("bad -record %q, want CC:bucket:index", spec)
	}
	cc := strings.ToUpper(parts[0])
	key, err := bucket.ParseKey(parts[1])
	if err != nil {
		log.Fatalf("bad bucket: %v", err)
	}
	i, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || i < 0 {
		log.Fatalf("bad record index %q", parts[2])
	}

	idx, err := backend.FetchCountryIndex(ctx, cc)
	if err != nil {
		log.Fatalf("fetch index: %v", err)
	}
	info, ok := idx.Buckets[key.String()]
	if !ok {
		log.Fatalf("country %s has no bucket %s", cc, key)
	}
	if i >= info.Count {
		log.Fatalf("bucket %s has %d records, index %d out of range", key, info.Count, i)
	}

	data, err := backend.FetchRange(ctx, cc, info.PackFile, i*packfmt.RecordSize, packfmt.RecordSize)
	if err != nil {
		log.Fatalf("fetch range: %v", err)
	}
	rec, err := packfmt.Decode(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}

	fmt.Printf("pack:    %s\n", dataset.PackPath(idx.DatasetVersion, cc, info.PackFile))
	fmt.Printf("offset:  %d\n", i*packfmt.RecordSize)
	dump(rec)
}

func dump(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
