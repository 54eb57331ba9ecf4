package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bgentry/go-netrc/netrc"
)

// NetrcMachine is the part of a netrc entry used for M2M credentials.
type NetrcMachine struct {
	Name     string
	Login    string
	Account  string
	Password string
}

// DefaultNetrcPath honours $NETRC, then ~/.netrc (~/_netrc on Windows).
func DefaultNetrcPath() string {
	if p := os.Getenv("NETRC"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "_netrc")
	}
	return filepath.Join(home, ".netrc")
}

// ParseNetrcFile reads and parses path. A missing file satisfies os.IsNotExist.
func ParseNetrcFile(path string) (*netrc.Netrc, error) {
	n, err := netrc.ParseFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// ParseNetrc parses netrc text.
func ParseNetrc(data string) (*netrc.Netrc, error) {
	return netrc.Parse(strings.NewReader(data))
}

// Lookup returns the entry for host, or the default entry. Hosts are matched
// lower-cased.
func Lookup(n *netrc.Netrc, host string) (NetrcMachine, bool) {
	if n == nil {
		return NetrcMachine{}, false
	}
	m := n.FindMachine(strings.ToLower(host))
	if m == nil {
		return NetrcMachine{}, false
	}
	return NetrcMachine{
		Name:     m.Name,
		Login:    m.Login,
		Account:  m.Account,
		Password: m.Password,
	}, true
}
