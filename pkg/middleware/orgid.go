package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/knowted/knowted/pkg/httputil"
)

// OrgIDExtractor attempts to pull an organization id out of one request
// location, reporting whether it found one.
type OrgIDExtractor func(r *http.Request) (int64, bool)

// orgIDExtractors is the ordered list of request locations consulted for an
// organization id. First match wins. Order matters: explicit query values
// beat path values, which beat body values.
var orgIDExtractors = []OrgIDExtractor{
	queryExtractor("organization_id"),
	queryExtractor("organizationId"),
	pathExtractor("organizationId"),
	pathExtractor("id"),
	bodyExtractor("organizationId"),
}

// ResolveOrgID tries each extractor in order and returns the first
// organization id found
func ResolveOrgID(r *http.Request) (int64, bool) {
	for _, extract := range orgIDExtractors {
		if orgID, ok := extract(r); ok {
			return orgID, true
		}
	}
	return 0, false
}

func queryExtractor(key string) OrgIDExtractor {
	return func(r *http.Request) (int64, bool) {
		return parseID(r.URL.Query().Get(key))
	}
}

func pathExtractor(key string) OrgIDExtractor {
	return func(r *http.Request) (int64, bool) {
		return parseID(mux.Vars(r)[key])
	}
}

// bodyExtractor peeks at a JSON body without consuming it. Non-JSON and
// unreadable bodies resolve to nothing rather than an error; a later
// extractor or the handler's own parsing surfaces the problem.
func bodyExtractor(key string) OrgIDExtractor {
	return func(r *http.Request) (int64, bool) {
		if r.Body == nil || r.ContentLength == 0 {
			return 0, false
		}
		body, err := httputil.PeekBody(r)
		if err != nil {
			return 0, false
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return 0, false
		}
		raw, ok := fields[key]
		if !ok {
			return 0, false
		}
		var asNumber int64
		if err := json.Unmarshal(raw, &asNumber); err == nil {
			return parseValidID(asNumber)
		}
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			return parseID(asString)
		}
		return 0, false
	}
}

func parseID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return parseValidID(id)
}

func parseValidID(id int64) (int64, bool) {
	if id <= 0 {
		return 0, false
	}
	return id, true
}
