package modem

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseFields splits the value portion of a "+TAG: v0,v1,..." line into its
// raw field strings, honoring double-quoted fields (commas inside quotes do
// not split, and the surrounding quotes are stripped). It reports false if
// line does not begin with prefix.
func parseFields(line, prefix string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return nil, false
	}
	rest := strings.TrimSpace(line[len(prefix):])
	if rest == "" {
		return nil, true
	}

	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields, true
}

// rows splits a multi-line response into its non-blank lines, for command
// families (CGDCONT, CGACT, CGPADDR) that answer with one tagged line per
// record.
func rows(response string) []string {
	var out []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// parseHexInt parses a bare or quoted hexadecimal integer field, as used by
// +CREG's lac/cid fields.
func parseHexInt(s string) (int, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return 0, errors.Errorf("empty hex field")
	}
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse hex field %q", s)
	}
	return int(n), nil
}

// CMGLHeader is one +CMGL: header line preceding a hex PDU.
type CMGLHeader struct {
	Index int
	Stat  int
	Addr  string
	Len   int
}

func parseCMGLHeader(line string) (CMGLHeader, bool) {
	f, ok := parseFields(line, "+CMGL:")
	if !ok || len(f) < 2 {
		return CMGLHeader{}, false
	}
	return CMGLHeader{
		Index: atoiOr(field(f, 0), -1),
		Stat:  atoiOr(field(f, 1), -1),
		Addr:  field(f, 2),
		Len:   atoiOr(field(f, 3), 0),
	}, true
}

// CMGRHeader is the +CMGR: header line preceding a hex PDU.
type CMGRHeader struct {
	Stat int
	Addr string
	Len  int
}

func parseCMGRHeader(line string) (CMGRHeader, bool) {
	f, ok := parseFields(line, "+CMGR:")
	if !ok || len(f) < 1 {
		return CMGRHeader{}, false
	}
	return CMGRHeader{
		Stat: atoiOr(field(f, 0), -1),
		Addr: field(f, 1),
		Len:  atoiOr(field(f, 2), 0),
	}, true
}

// CREGInfo is the decoded +CREG: response, used by LocationInfo.
type CREGInfo struct {
	N    int
	Stat int
	LAC  int
	CID  int
}

func parseCREG(response string) (CREGInfo, error) {
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CREG:")
		if !ok {
			continue
		}
		if len(f) < 2 {
			return CREGInfo{}, &ProtocolError{Command: "AT+CREG?", Reason: "fewer than 2 fields"}
		}
		info := CREGInfo{
			N:    atoiOr(field(f, 0), 0),
			Stat: atoiOr(field(f, 1), 0),
		}
		if len(f) >= 4 {
			if lac, err := parseHexInt(f[2]); err == nil {
				info.LAC = lac
			}
			if cid, err := parseHexInt(f[3]); err == nil {
				info.CID = cid
			}
		}
		return info, nil
	}
	return CREGInfo{}, &ProtocolError{Command: "AT+CREG?", Reason: "no +CREG: line in response"}
}

// COPSInfo is one +COPS: response row.
type COPSInfo struct {
	Mode   int
	Format int
	Oper   string
}

func parseCOPS(response string) (COPSInfo, error) {
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+COPS:")
		if !ok {
			continue
		}
		if len(f) < 1 {
			return COPSInfo{}, &ProtocolError{Command: "AT+COPS?", Reason: "empty +COPS: line"}
		}
		return COPSInfo{
			Mode:   atoiOr(field(f, 0), 0),
			Format: atoiOr(field(f, 1), 0),
			Oper:   field(f, 2),
		}, nil
	}
	return COPSInfo{}, &ProtocolError{Command: "AT+COPS?", Reason: "no +COPS: line in response"}
}

// StorageInfo is the decoded +CPMS: response: read/write/storage memory
// selections with their used/total counts.
type StorageInfo struct {
	MemR   string
	UsedR  int
	TotalR int
	MemW   string
	UsedW  int
	TotalW int
	MemS   string
	UsedS  int
	TotalS int
}

func parseCPMS(response string) (StorageInfo, error) {
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CPMS:")
		if !ok {
			continue
		}
		if len(f) < 9 {
			return StorageInfo{}, &ProtocolError{Command: "AT+CPMS?", Reason: "fewer than 9 fields"}
		}
		return StorageInfo{
			MemR:   strings.Trim(field(f, 0), `"`),
			UsedR:  atoiOr(field(f, 1), 0),
			TotalR: atoiOr(field(f, 2), 0),
			MemW:   strings.Trim(field(f, 3), `"`),
			UsedW:  atoiOr(field(f, 4), 0),
			TotalW: atoiOr(field(f, 5), 0),
			MemS:   strings.Trim(field(f, 6), `"`),
			UsedS:  atoiOr(field(f, 7), 0),
			TotalS: atoiOr(field(f, 8), 0),
		}, nil
	}
	return StorageInfo{}, &ProtocolError{Command: "AT+CPMS?", Reason: "no +CPMS: line in response"}
}

// CSQInfo is the decoded +CSQ: response, rssi already mapped to dBm per
// §4.4's signal quality table (nil when raw is out of range).
type CSQInfo struct {
	RSSI *int
	Ber  *int
}

func parseCSQ(response string) (CSQInfo, error) {
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CSQ:")
		if !ok {
			continue
		}
		if len(f) < 2 {
			return CSQInfo{}, &ProtocolError{Command: "AT+CSQ", Reason: "fewer than 2 fields"}
		}
		raw := atoiOr(field(f, 0), -1)
		ber := atoiOr(field(f, 1), -1)

		info := CSQInfo{}
		switch {
		case raw == 0:
			v := -113
			info.RSSI = &v
		case raw >= 1 && raw <= 30:
			v := -113 + 2*raw
			info.RSSI = &v
		case raw == 31:
			v := -51
			info.RSSI = &v
		}
		if ber >= 0 {
			info.Ber = &ber
		}
		return info, nil
	}
	return CSQInfo{}, &ProtocolError{Command: "AT+CSQ", Reason: "no +CSQ: line in response"}
}

// CGDCONTInfo is one +CGDCONT: context definition row.
type CGDCONTInfo struct {
	CID  int
	Type string
	APN  string
}

func parseCGDCONT(response string) []CGDCONTInfo {
	var out []CGDCONTInfo
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CGDCONT:")
		if !ok || len(f) < 1 {
			continue
		}
		out = append(out, CGDCONTInfo{
			CID:  atoiOr(field(f, 0), -1),
			Type: strings.Trim(field(f, 1), `"`),
			APN:  strings.Trim(field(f, 2), `"`),
		})
	}
	return out
}

// CGACTInfo is one +CGACT: context activation state row.
type CGACTInfo struct {
	CID    int
	Active bool
}

func parseCGACT(response string) []CGACTInfo {
	var out []CGACTInfo
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CGACT:")
		if !ok || len(f) < 2 {
			continue
		}
		out = append(out, CGACTInfo{
			CID:    atoiOr(field(f, 0), -1),
			Active: atoiOr(field(f, 1), 0) == 1,
		})
	}
	return out
}

// CGPADDRInfo is one +CGPADDR: context address row.
type CGPADDRInfo struct {
	CID     int
	Address string
}

func parseCGPADDR(response string) []CGPADDRInfo {
	var out []CGPADDRInfo
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CGPADDR:")
		if !ok || len(f) < 1 {
			continue
		}
		out = append(out, CGPADDRInfo{
			CID:     atoiOr(field(f, 0), -1),
			Address: strings.Trim(field(f, 1), `"`),
		})
	}
	return out
}

// CNUMInfo is the decoded +CNUM: own-number response.
type CNUMInfo struct {
	Alpha  string
	Number string
	Type   int
}

func parseCNUM(response string) (CNUMInfo, error) {
	for _, line := range rows(response) {
		f, ok := parseFields(line, "+CNUM:")
		if !ok {
			continue
		}
		if len(f) < 2 {
			return CNUMInfo{}, &ProtocolError{Command: "AT+CNUM", Reason: "fewer than 2 fields"}
		}
		return CNUMInfo{
			Alpha:  strings.Trim(field(f, 0), `"`),
			Number: strings.Trim(field(f, 1), `"`),
			Type:   atoiOr(field(f, 2), 0),
		}, nil
	}
	return CNUMInfo{}, &ProtocolError{Command: "AT+CNUM", Reason: "no +CNUM: line in response"}
}

// parseCMGSResult extracts the message reference from a +CMGS: response.
func parseCMGSResult(response string) (int, error) {
	for _, line := range rows(response) {
		if f, ok := parseFields(line, "+CMGS:"); ok && len(f) >= 1 {
			return atoiOr(field(f, 0), -1), nil
		}
	}
	return 0, &ProtocolError{Command: "AT+CMGS", Reason: "no +CMGS: line in response"}
}

// parseCMGWResult extracts the stored index from a +CMGW: response.
func parseCMGWResult(response string) (int, error) {
	for _, line := range rows(response) {
		if f, ok := parseFields(line, "+CMGW:"); ok && len(f) >= 1 {
			return atoiOr(field(f, 0), -1), nil
		}
	}
	return 0, &ProtocolError{Command: "AT+CMGW", Reason: "no +CMGW: line in response"}
}

// endsWithOK reports whether response carries a line-start "OK" anywhere,
// the success condition §4.2 anchors on.
func endsWithOK(response string) bool {
	for _, line := range rows(response) {
		if line == "OK" {
			return true
		}
	}
	return false
}
