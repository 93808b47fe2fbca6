package modem

import (
	"context"
	"fmt"
	"strings"

	"github.com/northfield-iot/gsmmodem/geo"
)

// ModemInfo is the static device identity reported by AT+CGMI/+CGMM/+CGMR/
// +CGSN.
type ModemInfo struct {
	Manufacturer string
	Model        string
	Revision     string
	IMEI         string
}

func (m *Modem) queryPlain(ctx context.Context, cmd string) (string, error) {
	resp, err := m.port.Exec(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !endsWithOK(resp) {
		return "", &ModemError{Command: cmd, Response: resp}
	}
	for _, line := range rows(resp) {
		if line != "OK" {
			return line, nil
		}
	}
	return "", nil
}

// ModemInfo queries the device's manufacturer, model, firmware revision
// and IMEI.
func (m *Modem) ModemInfo(ctx context.Context) (ModemInfo, error) {
	manufacturer, err := m.queryPlain(ctx, "AT+CGMI")
	if err != nil {
		return ModemInfo{}, err
	}
	model, err := m.queryPlain(ctx, "AT+CGMM")
	if err != nil {
		return ModemInfo{}, err
	}
	revision, err := m.queryPlain(ctx, "AT+CGMR")
	if err != nil {
		return ModemInfo{}, err
	}
	imei, err := m.queryPlain(ctx, "AT+CGSN")
	if err != nil {
		return ModemInfo{}, err
	}
	return ModemInfo{Manufacturer: manufacturer, Model: model, Revision: revision, IMEI: imei}, nil
}

// ContextInfo merges one PDP context's AT+CGDCONT definition, AT+CGACT
// activation state, and AT+CGPADDR address by context id.
type ContextInfo struct {
	CID     int
	Type    string
	APN     string
	Active  bool
	Address string
}

// NetworkInfo is the registered-operator and PDP-context summary returned
// by AT+COPS/+CGDCONT/+CGACT/+CGPADDR. The field is named Contexts (not
// PDPContexts) to match the underlying command family's own naming.
type NetworkInfo struct {
	OperatorName    string
	OperatorNumeric string
	Contexts        []ContextInfo
}

// NetworkInfo queries the registered operator (once by name, once
// numerically) and the device's PDP context table.
func (m *Modem) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	if _, err := m.port.Exec(ctx, "AT+COPS=3,0"); err != nil {
		return NetworkInfo{}, err
	}
	nameResp, err := m.port.Exec(ctx, "AT+COPS?")
	if err != nil {
		return NetworkInfo{}, err
	}
	named, err := parseCOPS(nameResp)
	if err != nil {
		return NetworkInfo{}, err
	}

	if _, err := m.port.Exec(ctx, "AT+COPS=3,2"); err != nil {
		return NetworkInfo{}, err
	}
	numericResp, err := m.port.Exec(ctx, "AT+COPS?")
	if err != nil {
		return NetworkInfo{}, err
	}
	numeric, err := parseCOPS(numericResp)
	if err != nil {
		return NetworkInfo{}, err
	}

	dcResp, err := m.port.Exec(ctx, "AT+CGDCONT?")
	if err != nil {
		return NetworkInfo{}, err
	}
	defs := parseCGDCONT(dcResp)

	actResp, err := m.port.Exec(ctx, "AT+CGACT?")
	if err != nil {
		return NetworkInfo{}, err
	}
	states := parseCGACT(actResp)
	activeByCID := make(map[int]bool, len(states))
	for _, s := range states {
		activeByCID[s.CID] = s.Active
	}

	cids := make([]string, 0, len(defs))
	for _, d := range defs {
		cids = append(cids, fmt.Sprintf("%d", d.CID))
	}
	addrByCID := make(map[int]string)
	if len(cids) > 0 {
		addrResp, err := m.port.Exec(ctx, fmt.Sprintf("AT+CGPADDR=%s", strings.Join(cids, ",")))
		if err != nil {
			return NetworkInfo{}, err
		}
		for _, a := range parseCGPADDR(addrResp) {
			addrByCID[a.CID] = a.Address
		}
	}

	contexts := make([]ContextInfo, 0, len(defs))
	for _, d := range defs {
		contexts = append(contexts, ContextInfo{
			CID:     d.CID,
			Type:    d.Type,
			APN:     d.APN,
			Active:  activeByCID[d.CID],
			Address: addrByCID[d.CID],
		})
	}

	return NetworkInfo{
		OperatorName:    named.Oper,
		OperatorNumeric: numeric.Oper,
		Contexts:        contexts,
	}, nil
}

// SignalQuality is the dBm-mapped AT+CSQ response (§4.4): RSSI is nil when
// the raw reading falls outside 0..31.
type SignalQuality struct {
	RSSI *int
	Ber  *int
}

// SignalQuality queries AT+CSQ and maps the raw RSSI reading to dBm.
func (m *Modem) SignalQuality(ctx context.Context) (SignalQuality, error) {
	resp, err := m.port.Exec(ctx, "AT+CSQ")
	if err != nil {
		return SignalQuality{}, err
	}
	info, err := parseCSQ(resp)
	if err != nil {
		return SignalQuality{}, err
	}
	return SignalQuality(info), nil
}

// MessageStorage queries AT+CPMS? for the current read/write/storage
// memory selections and their used/total counts.
func (m *Modem) MessageStorage(ctx context.Context) (StorageInfo, error) {
	resp, err := m.port.Exec(ctx, "AT+CPMS?")
	if err != nil {
		return StorageInfo{}, err
	}
	return parseCPMS(resp)
}

// SetMessageStorage sets the read, write, and storage memory to mem (e.g.
// "SM", "ME").
func (m *Modem) SetMessageStorage(ctx context.Context, mem string) (StorageInfo, error) {
	cmd := fmt.Sprintf(`AT+CPMS="%s","%s","%s"`, mem, mem, mem)
	resp, err := m.port.Exec(ctx, cmd)
	if err != nil {
		return StorageInfo{}, err
	}
	if !endsWithOK(resp) {
		return StorageInfo{}, &ModemError{Command: cmd, Response: resp}
	}
	return parseCPMS(resp)
}

// LocationInfo is the resolved LAC/CID (and, when a Locator is configured,
// an approximate geographic position).
type LocationInfo struct {
	LAC      int
	CID      int
	Position *geo.Position
}

// LocationInfo enables location-bearing CREG reports, queries the current
// cell, and — if a Locator was configured — resolves it to a position via
// the current registered operator's MCC/MNC.
func (m *Modem) LocationInfo(ctx context.Context) (LocationInfo, error) {
	if _, err := m.port.Exec(ctx, "AT+CREG=2"); err != nil {
		return LocationInfo{}, err
	}
	resp, err := m.port.Exec(ctx, "AT+CREG?")
	if err != nil {
		return LocationInfo{}, err
	}
	reg, err := parseCREG(resp)
	if err != nil {
		return LocationInfo{}, err
	}

	result := LocationInfo{LAC: reg.LAC, CID: reg.CID}
	if m.cfg.Locator == nil {
		return result, nil
	}

	mcc, mnc, err := m.currentMCCMNC(ctx)
	if err != nil {
		return result, nil
	}
	pos, err := m.cfg.Locator.Locate(ctx, geo.Cell{MCC: mcc, MNC: mnc, LAC: reg.LAC, CID: reg.CID})
	if err != nil {
		m.Events.publish(Event{Kind: EventATNotification, Payload: fmt.Sprintf("location lookup failed: %v", err)})
		return result, nil
	}
	result.Position = &pos
	return result, nil
}

// currentMCCMNC queries the numeric operator identity (AT+COPS format 2)
// and splits it into MCC (first 3 digits) and MNC (the remainder).
func (m *Modem) currentMCCMNC(ctx context.Context) (mcc, mnc int, err error) {
	if _, err = m.port.Exec(ctx, "AT+COPS=3,2"); err != nil {
		return 0, 0, err
	}
	resp, err := m.port.Exec(ctx, "AT+COPS?")
	if err != nil {
		return 0, 0, err
	}
	info, err := parseCOPS(resp)
	if err != nil {
		return 0, 0, err
	}
	numeric := strings.Trim(info.Oper, `"`)
	if len(numeric) < 5 {
		return 0, 0, &ProtocolError{Command: "AT+COPS?", Reason: "numeric operator shorter than 5 digits"}
	}
	mccVal, mncVal := 0, 0
	fmt.Sscanf(numeric[:3], "%d", &mccVal)
	fmt.Sscanf(numeric[3:], "%d", &mncVal)
	return mccVal, mncVal, nil
}
