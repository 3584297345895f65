// Package geo implements IP-to-location resolution against a MaxMind City
// MMDB, including one-time acquisition of the database file into a platform
// data directory.
package geo

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oschwald/maxminddb-golang"

	"proxyprobe/internal/model"
	"proxyprobe/internal/perrors"
)

const fakeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// mmdbRecord mirrors the subset of the GeoLite2-City schema the three
// extraction rules in spec §4.2 need.
type mmdbRecord struct {
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Continent struct {
		Code  string            `maxminddb:"code"`
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"continent"`
	Subdivisions []struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"subdivisions"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Lookup resolves IPv4 addresses against an open MMDB reader.
type Lookup struct {
	reader *maxminddb.Reader
	path   string
}

// Lookuper is the seam fetcher depends on, so tests can inject a fake
// without a real MMDB file. *Lookup satisfies it.
type Lookuper interface {
	Lookup(ip net.IP) model.GeoData
}

// DataDir returns "<platform-data-dir>/proxyprobe" (os.UserCacheDir, since
// Go's standard library has no directories.BaseDirs equivalent; this plays
// the same role as the original's data_dir()).
func DataDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("geo: resolve data dir: %w", err)
	}
	dir := filepath.Join(base, "proxyprobe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("geo: create data dir: %w", err)
	}
	return dir, nil
}

// Open ensures the MMDB file exists at <data-dir>/geolite2-city.mmdb
// (downloading from mirrorURL if absent), then opens it. On a reader-open
// failure the on-disk file is deleted so the next run re-downloads it.
func Open(mirrorURL string) (*Lookup, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, perrors.NewConfigError(perrors.ErrorMmdbUnavailable, "geo: data dir unavailable", err)
	}
	path := filepath.Join(dir, "geolite2-city.mmdb")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := download(mirrorURL, path); err != nil {
			return nil, perrors.NewConfigError(perrors.ErrorMmdbUnavailable, "geo: mmdb download failed", err)
		}
	}

	reader, err := maxminddb.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, perrors.NewConfigError(perrors.ErrorMmdbUnavailable, "geo: mmdb open failed, deleted for re-download", err)
	}
	return &Lookup{reader: reader, path: path}, nil
}

func download(url, dest string) error {
	client := &http.Client{Timeout: 2 * time.Minute}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", fakeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: mmdb mirror returned status %d", resp.StatusCode)
	}

	tmp := dest + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// Close releases the underlying MMDB reader. The reader is read-only after
// init and safe to share by reference with no locking (spec §5).
func (l *Lookup) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}

// Lookup resolves ip to a GeoData following the three extraction rules in
// spec §4.2. A lookup miss yields a zero-value GeoData, not an error.
func (l *Lookup) Lookup(ip net.IP) model.GeoData {
	var rec mmdbRecord
	if err := l.reader.Lookup(ip, &rec); err != nil {
		return model.GeoData{}
	}
	return geoFromRecord(rec)
}

// geoFromRecord applies the three extraction rules in spec §4.2 to an
// already-decoded mmdbRecord. Split out from Lookup so the rules are
// testable without a real MMDB file.
func geoFromRecord(rec mmdbRecord) model.GeoData {
	var geo model.GeoData
	if rec.Country.ISOCode != "" {
		geo.ISOCode = rec.Country.ISOCode
		geo.CountryName = rec.Country.Names["en"]
	} else if rec.Continent.Code != "" {
		geo.ISOCode = rec.Continent.Code
		geo.CountryName = rec.Continent.Names["en"]
	}

	if len(rec.Subdivisions) > 0 {
		geo.RegionISOCode = rec.Subdivisions[0].ISOCode
		geo.RegionName = rec.Subdivisions[0].Names["en"]
	}

	geo.CityName = rec.City.Names["en"]

	return geo
}
