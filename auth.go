package niquests

import (
	"bufio"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
)

// netrcEntry is one machine's credentials as parsed from a .netrc file.
type netrcEntry struct {
	login    string
	password string
}

// netrcFile is a parsed .netrc, keyed by machine (host). Netrc is
// read-only state; the file itself is never written back.
type netrcFile struct {
	machines map[string]netrcEntry
	def      *netrcEntry
}

// loadNetrc reads the netrc file named by the NETRC environment
// variable, or ~/.netrc (~/_netrc on Windows) when unset.
func loadNetrc() (*netrcFile, error) {
	path := os.Getenv("NETRC")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		name := ".netrc"
		if os.PathSeparator == '\\' {
			name = "_netrc"
		}
		path = filepath.Join(home, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nf := &netrcFile{machines: make(map[string]netrcEntry)}
	var (
		cur     *netrcEntry
		curHost string
		inDef   bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		if inDef {
			nf.def = cur
		} else {
			nf.machines[curHost] = *cur
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		i := 0
		for i < len(fields) {
			switch fields[i] {
			case "machine":
				if i+1 < len(fields) {
					flush()
					cur = &netrcEntry{}
					curHost = fields[i+1]
					inDef = false
					i += 2
					continue
				}
			case "default":
				flush()
				cur = &netrcEntry{}
				inDef = true
				i++
				continue
			case "login":
				if i+1 < len(fields) && cur != nil {
					cur.login = fields[i+1]
					i += 2
					continue
				}
			case "password":
				if i+1 < len(fields) && cur != nil {
					cur.password = fields[i+1]
					i += 2
					continue
				}
			}
			i++
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nf, nil
}

// lookup returns credentials for host, falling back to the "default"
// machine entry if present.
func (nf *netrcFile) lookup(host string) (netrcEntry, bool) {
	if nf == nil {
		return netrcEntry{}, false
	}
	if e, ok := nf.machines[host]; ok {
		return e, true
	}
	if nf.def != nil {
		return *nf.def, true
	}
	return netrcEntry{}, false
}

// basicAuthHeader renders a Basic Authorization header value.
func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// resolveAuthHeader implements the auth precedence: auth= wins over a
// .netrc entry, which wins over a manual Authorization header the
// caller set directly. It returns "" when nothing applies, leaving any
// caller-set header intact.
func resolveAuthHeader(auth *Auth, host string, netrc *netrcFile) string {
	if auth != nil {
		if auth.Bearer != "" {
			return "Bearer " + auth.Bearer
		}
		if auth.Username != "" || auth.Password != "" {
			return basicAuthHeader(auth.Username, auth.Password)
		}
	}
	if entry, ok := netrc.lookup(host); ok {
		return basicAuthHeader(entry.login, entry.password)
	}
	return ""
}
