package packfmt

import (
	"math"
	"strings"
	"testing"
)

func intp(v int) *int { return &v }

func fp(v float64) *float64 { return &v }

func fullRecord() Record {
	return Record{
		PanoID:      "pano-CAoSLEFGMVFpcE1234",
		Lat:         48.8583701,
		Lng:         2.2944813,
		Subdivision: "FR-IDF",
		CaptureDays: 19874,
		Scout:       false,
		Heading:     fp(271.37),
		Surface:     "asphalt",
		Arrows:      intp(4),
		Buildings:   intp(37),
		Roads:       intp(3),
		Elevation:   intp(35),
	}
}

func TestEncode_Size(t *testing.T) {
	b, err := Encode(fullRecord())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != RecordSize {
		t.Fatalf("Encode produced %d bytes, want %d", len(b), RecordSize)
	}
	// padding stays zero
	for i := offHash + 8; i < RecordSize; i++ {
		if b[i] != 0 {
			t.Fatalf("padding byte %d = %#x, want 0", i, b[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	minimal := Record{PanoID: "x", Lat: -90, Lng: 180}
	negElev := fullRecord()
	negElev.Elevation = intp(-412) // Dead Sea shore

	tests := []struct {
		name string
		rec  Record
	}{
		{name: "full", rec: fullRecord()},
		{name: "minimal", rec: minimal},
		{name: "negative elevation", rec: negElev},
		{name: "scout no heading", rec: Record{PanoID: "trek-1", Lat: 27.9881, Lng: 86.925, Scout: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.rec)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if got.PanoID != tc.rec.PanoID || got.Subdivision != tc.rec.Subdivision || got.Surface != tc.rec.Surface {
				t.Fatalf("string fields mismatch: %+v vs %+v", got, tc.rec)
			}
			if math.Abs(got.Lat-tc.rec.Lat) > 1e-7 || math.Abs(got.Lng-tc.rec.Lng) > 1e-7 {
				t.Fatalf("lat/lng drift: got (%v, %v), want (%v, %v)", got.Lat, got.Lng, tc.rec.Lat, tc.rec.Lng)
			}
			if got.CaptureDays != tc.rec.CaptureDays || got.Scout != tc.rec.Scout {
				t.Fatalf("date/scout mismatch: %+v vs %+v", got, tc.rec)
			}
			if (got.Heading == nil) != (tc.rec.Heading == nil) {
				t.Fatalf("heading set/unset not preserved")
			}
			if got.Heading != nil && math.Abs(*got.Heading-*tc.rec.Heading) > 0.01 {
				t.Fatalf("heading drift: %v vs %v", *got.Heading, *tc.rec.Heading)
			}
			for _, pair := range []struct {
				name     string
				got, src *int
			}{
				{"arrows", got.Arrows, tc.rec.Arrows},
				{"buildings", got.Buildings, tc.rec.Buildings},
				{"roads", got.Roads, tc.rec.Roads},
				{"elevation", got.Elevation, tc.rec.Elevation},
			} {
				if (pair.got == nil) != (pair.src == nil) {
					t.Fatalf("%s set/unset not preserved", pair.name)
				}
				if pair.got != nil && *pair.got != *pair.src {
					t.Fatalf("%s = %d, want %d", pair.name, *pair.got, *pair.src)
				}
			}
			if got.Hash != HashPanoID(tc.rec.PanoID) {
				t.Fatalf("hash = %#x, want HashPanoID(%q) = %#x", got.Hash, tc.rec.PanoID, HashPanoID(tc.rec.PanoID))
			}
		})
	}
}

func TestHashPanoID_PureAndRecomputed(t *testing.T) {
	if HashPanoID("abc") != HashPanoID("abc") {
		t.Fatal("HashPanoID is not deterministic")
	}
	if HashPanoID("abc") == HashPanoID("abd") {
		t.Fatal("HashPanoID collides on trivially different ids")
	}

	// Encode must ignore a caller-supplied hash
	r := fullRecord()
	r.Hash = 0xdeadbeef
	b, err := Encode(r)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Hash != HashPanoID(r.PanoID) {
		t.Fatalf("Encode trusted the caller hash: %#x", got.Hash)
	}
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Record)
	}{
		{name: "empty pano id", mut: func(r *Record) { r.PanoID = "" }},
		{name: "pano id too long", mut: func(r *Record) { r.PanoID = strings.Repeat("a", MaxPanoIDLen+1) }},
		{name: "subdivision too long", mut: func(r *Record) { r.Subdivision = strings.Repeat("b", MaxSubdivisionLen+1) }},
		{name: "surface too long", mut: func(r *Record) { r.Surface = strings.Repeat("c", MaxSurfaceLen+1) }},
		{name: "negative heading", mut: func(r *Record) { h := -1.0; r.Heading = &h }},
		{name: "heading over 360", mut: func(r *Record) { h := 360.0; r.Heading = &h }},
		{name: "negative arrows", mut: func(r *Record) { r.Arrows = intp(-1) }},
		{name: "arrows at sentinel", mut: func(r *Record) { r.Arrows = intp(int(UnknownArrows)) }},
		{name: "buildings overflow", mut: func(r *Record) { r.Buildings = intp(70000) }},
		{name: "roads at sentinel", mut: func(r *Record) { r.Roads = intp(int(UnknownRoads)) }},
		{name: "elevation overflow", mut: func(r *Record) { r.Elevation = intp(40000) }},
		{name: "elevation underflow", mut: func(r *Record) { r.Elevation = intp(-40000) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := fullRecord()
			tc.mut(&r)
			if _, err := Encode(r); err == nil {
				t.Fatal("Encode succeeded, want error")
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	valid, err := Encode(fullRecord())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name string
		mut  func([]byte) []byte
	}{
		{name: "short buffer", mut: func(b []byte) []byte { return b[:RecordSize-1] }},
		{name: "pano length over capacity", mut: func(b []byte) []byte { b[offPanoLen] = MaxPanoIDLen + 1; return b }},
		{name: "subdivision length over capacity", mut: func(b []byte) []byte { b[offSubLen] = MaxSubdivisionLen + 1; return b }},
		{name: "surface length over capacity", mut: func(b []byte) []byte { b[offSurfLen] = MaxSurfaceLen + 1; return b }},
		{name: "zero pano length", mut: func(b []byte) []byte { b[offPanoLen] = 0; return b }},
		{name: "invalid utf8 in pano", mut: func(b []byte) []byte { b[offPano] = 0xff; return b }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := append([]byte(nil), valid...)
			if _, err := Decode(tc.mut(b)); err == nil {
				t.Fatal("Decode succeeded, want error")
			}
		})
	}
}

func TestDecodeBatch_IsolatesCorruptRecords(t *testing.T) {
	good1, _ := Encode(Record{PanoID: "a", Lat: 1, Lng: 2})
	good2, _ := Encode(Record{PanoID: "b", Lat: 3, Lng: 4})
	bad := append([]byte(nil), good1...)
	bad[offPanoLen] = MaxPanoIDLen + 1

	var buf []byte
	buf = append(buf, good1...)
	buf = append(buf, bad...)
	buf = append(buf, good2...)
	buf = append(buf, 0x01, 0x02) // trailing partial record

	recs, skipped := DecodeBatch(buf)
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(recs) != 2 || recs[0].PanoID != "a" || recs[1].PanoID != "b" {
		t.Fatalf("recs = %+v", recs)
	}
}

func TestCaptureDate(t *testing.T) {
	var r Record
	if _, ok := r.CaptureDate(); ok {
		t.Fatal("zero CaptureDays should be unknown")
	}
	if r.CaptureYear() != nil {
		t.Fatal("CaptureYear should be nil when unknown")
	}

	r.CaptureDays = 19874 // 2024-06-01
	d, ok := r.CaptureDate()
	if !ok {
		t.Fatal("CaptureDate not ok")
	}
	if d.Year() != 2024 {
		t.Fatalf("year = %d, want 2024", d.Year())
	}
	if y := r.CaptureYear(); y == nil || *y != 2024 {
		t.Fatalf("CaptureYear = %v", y)
	}
}
