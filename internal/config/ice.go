package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// iceSettings are the raw ICE-related environment values. ICE_SERVERS_JSON,
// when set, replaces the STUN_URLS / TURN_* shorthand entirely.
type iceSettings struct {
	JSON           string
	STUNURLs       string
	TURNURLs       string
	TURNUsername   string
	TURNCredential string
}

// iceEntry mirrors one element of the browser's RTCConfiguration.iceServers;
// urls may be a single string or a list.
type iceEntry struct {
	URLs       json.RawMessage `json:"urls"`
	Username   string          `json:"username"`
	Credential string          `json:"credential"`
}

// servers resolves the settings into the list served on /ice-servers.
func (s iceSettings) servers() ([]webrtc.ICEServer, error) {
	if raw := strings.TrimSpace(s.JSON); raw != "" {
		out, err := decodeICEServers([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("ICE_SERVERS_JSON: %w", err)
		}
		return out, nil
	}

	var out []webrtc.ICEServer
	if urls := splitCommaSeparated(s.STUNURLs); len(urls) > 0 {
		srv := webrtc.ICEServer{URLs: urls}
		if err := checkICEServer(srv); err != nil {
			return nil, fmt.Errorf("STUN_URLS: %w", err)
		}
		out = append(out, srv)
	}
	if urls := splitCommaSeparated(s.TURNURLs); len(urls) > 0 {
		srv := webrtc.ICEServer{
			URLs:       urls,
			Username:   strings.TrimSpace(s.TURNUsername),
			Credential: strings.TrimSpace(s.TURNCredential),
		}
		if err := checkICEServer(srv); err != nil {
			return nil, fmt.Errorf("TURN_URLS: %w", err)
		}
		out = append(out, srv)
	}
	return out, nil
}

func decodeICEServers(raw []byte) ([]webrtc.ICEServer, error) {
	var entries []iceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(entries))
	for i, e := range entries {
		urls, err := decodeURLs(e.URLs)
		if err != nil {
			return nil, fmt.Errorf("entry %d: urls: %w", i, err)
		}
		srv := webrtc.ICEServer{URLs: urls, Username: strings.TrimSpace(e.Username)}
		if cred := strings.TrimSpace(e.Credential); cred != "" {
			srv.Credential = cred
		}
		if err := checkICEServer(srv); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, srv)
	}
	return out, nil
}

func decodeURLs(raw json.RawMessage) ([]string, error) {
	var list []string
	if len(raw) > 0 && raw[0] == '"' {
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		list = []string{one}
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return splitCommaSeparated(strings.Join(list, ",")), nil
}

// checkICEServer parses every url with the STUN/TURN URI grammar and requires
// credentials for TURN relays.
func checkICEServer(srv webrtc.ICEServer) error {
	if len(srv.URLs) == 0 {
		return fmt.Errorf("no urls")
	}
	for _, raw := range srv.URLs {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		if uri.Scheme != stun.SchemeTypeTURN && uri.Scheme != stun.SchemeTypeTURNS {
			continue
		}
		if cred, _ := srv.Credential.(string); srv.Username == "" || cred == "" {
			return fmt.Errorf("%q: turn servers need a username and credential", raw)
		}
	}
	return nil
}

func splitCommaSeparated(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
