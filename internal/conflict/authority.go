package conflict

import (
	"net/url"
	"strings"
)

// authorityRegistry ranks evidence source hosts. Lower is more
// authoritative: the official gazette outranks the tax administration's
// guidance pages, which outrank everything else.
var authorityRegistry = map[string]int{
	"narodne-novine.nn.hr":  1,
	"nn.hr":                 1,
	"porezna-uprava.gov.hr": 2,
	"mfin.gov.hr":           3,
	"gov.hr":                4,
}

const unrankedAuthority = 9

// AuthorityRank returns the authority rank for an evidence source URL.
// Unknown hosts get the worst rank rather than an error: an unranked source
// still participates, it just never wins on authority.
func AuthorityRank(sourceURL string) int {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return unrankedAuthority
	}
	host := strings.ToLower(u.Host)
	for {
		if rank, ok := authorityRegistry[host]; ok {
			return rank
		}
		i := strings.Index(host, ".")
		if i < 0 {
			return unrankedAuthority
		}
		host = host[i+1:]
	}
}
