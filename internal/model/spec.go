package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseProtocolSpec parses one entry of the CLI's --types grammar:
// "HTTP[:Transparent|:Anonymous|:Elite] | HTTPS | SOCKS4 | SOCKS5 | CONNECT:<port>".
func ParseProtocolSpec(spec string) (Protocol, error) {
	kind, rest, _ := strings.Cut(spec, ":")
	kind = strings.ToUpper(strings.TrimSpace(kind))
	rest = strings.TrimSpace(rest)

	switch kind {
	case "HTTP":
		if rest == "" {
			return HTTP(AnonymityUnknown), nil
		}
		a, err := ParseAnonymity(rest)
		if err != nil {
			return Protocol{}, fmt.Errorf("invalid type spec %q: %w", spec, err)
		}
		return HTTP(a), nil
	case "HTTPS":
		if rest != "" {
			return Protocol{}, fmt.Errorf("invalid type spec %q: HTTPS takes no suffix", spec)
		}
		return HTTPS(), nil
	case "SOCKS4":
		return Socks4(), nil
	case "SOCKS5":
		return Socks5(), nil
	case "CONNECT":
		if rest == "" {
			return Protocol{}, fmt.Errorf("invalid type spec %q: CONNECT requires a port", spec)
		}
		port, err := strconv.ParseUint(rest, 10, 16)
		if err != nil {
			return Protocol{}, fmt.Errorf("invalid type spec %q: bad port: %w", spec, err)
		}
		return Connect(uint16(port)), nil
	default:
		return Protocol{}, fmt.Errorf("invalid type spec %q: unrecognized protocol %q", spec, kind)
	}
}

// ParseProtocolSpecs parses each entry of specs as one spec, as passed to
// -t/--types (pflag has already split comma-separated values and
// accumulated repeated flags, so no splitting happens here). It stops at
// the first invalid entry and returns its error.
func ParseProtocolSpecs(specs []string) ([]Protocol, error) {
	out := make([]Protocol, 0, len(specs))
	for _, s := range specs {
		p, err := ParseProtocolSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
