// Package config provides the CLI flag surface (pflag), an optional YAML
// runtime-tuning file, and an fsnotify-backed hot-reload watcher for that
// file.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds the small set of operational knobs that are worth
// tuning without a rebuild: the HTTP/HTTPS judge rings, the MMDB mirror URL,
// and the fetcher's concurrency limit. It is intentionally separate from the CLI
// flags (§6), which govern one run's behavior; this file governs the
// pipeline's hard-coded network endpoints.
type RuntimeConfig struct {
	HTTPJudges        []string `yaml:"http_judges"`
	HTTPSJudges       []string `yaml:"https_judges"`
	MmdbMirrorURL     string   `yaml:"mmdb_mirror_url"`
	FetcherConcurrency int     `yaml:"fetcher_concurrency_limit"`
}

// DefaultRuntimeConfig returns the built-in defaults, used whenever no
// runtime config file is present.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		HTTPJudges: []string{
			"http://azenv.net/",
			"http://httpheader.net/azenv.php",
			"http://httpbin.org/get?show_env",
			"http://mojeip.net.pl/asdfa/azenv.php",
			"http://proxyjudge.us/azenv.php",
			"http://pascal.hoez.free.fr/azenv.php",
			"http://www.9ravens.com/env.cgi",
			"http://www3.wind.ne.jp/hassii/env.cgi",
			"http://shinh.org/env.cgi",
			"http://www2t.biglobe.ne.jp/~take52/test/env.cgi",
		},
		HTTPSJudges: []string{
			"https://httpbin.org/get?show_env",
			"https://proxyjudge.info/azenv.php",
			"https://proxy-listen.de/azenv.php",
			"https://httpheader.net/azenv.php",
		},
		MmdbMirrorURL:      "https://raw.githubusercontent.com/P3TERX/GeoLite.mmdb/download/GeoLite2-City.mmdb",
		FetcherConcurrency: 10,
	}
}

// LoadRuntimeConfig reads filename as YAML, falling back to defaults for
// any field left unset and for the whole file when it doesn't exist —
// matching the teacher's "missing file ⇒ defaults" contract.
func LoadRuntimeConfig(filename string) (*RuntimeConfig, error) {
	defaults := DefaultRuntimeConfig()
	if filename == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}

	var loaded RuntimeConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, err
	}

	if len(loaded.HTTPJudges) == 0 {
		loaded.HTTPJudges = defaults.HTTPJudges
	}
	if len(loaded.HTTPSJudges) == 0 {
		loaded.HTTPSJudges = defaults.HTTPSJudges
	}
	if loaded.MmdbMirrorURL == "" {
		loaded.MmdbMirrorURL = defaults.MmdbMirrorURL
	}
	if loaded.FetcherConcurrency == 0 {
		loaded.FetcherConcurrency = defaults.FetcherConcurrency
	}
	return &loaded, nil
}
