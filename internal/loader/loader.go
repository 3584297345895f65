// Package loader implements --file: reading a list of proxy addresses from
// disk instead of crawling providers (spec §6).
package loader

import (
	"bufio"
	"os"

	"proxyprobe/internal/model"
)

// Source replays a fixed, pre-parsed slice of proxies; it satisfies the same
// Next() (*model.Proxy, bool) shape fetcher.Fetcher and validator.Validator
// do, so a file-backed run can be wired in wherever a crawled one would go.
type Source struct {
	proxies []*model.Proxy
	i       int
}

// Next returns the next proxy from the file, or (nil, false) once exhausted.
func (s *Source) Next() (*model.Proxy, bool) {
	if s.i >= len(s.proxies) {
		return nil, false
	}
	p := s.proxies[s.i]
	s.i++
	return p, true
}

// LoadFile reads filename as one "<ip>:<port>" per line, malformed lines
// silently skipped (spec §6), and declares every loaded proxy as a candidate
// for each of declaredTypes (the parsed --types value, required alongside
// --file).
func LoadFile(filename string, declaredTypes []model.Protocol) (*Source, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var proxies []*model.Proxy
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ip, port, err := model.ParseAddr(scanner.Text())
		if err != nil {
			continue
		}
		proxies = append(proxies, model.NewProxy(ip, port, declaredTypes))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Source{proxies: proxies}, nil
}
