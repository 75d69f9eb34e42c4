package discovery

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeGatewayTXT creates TXT records for the gateway advertisement.
func EncodeGatewayTXT(info *GatewayInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: info.Version,
		TXTKeyAPI:     info.APIPath,
	}
	if info.Band != 0 {
		txt[TXTKeyBand] = strconv.Itoa(int(info.Band))
	}
	return txt
}

// DecodeGatewayTXT parses TXT records of a gateway advertisement.
func DecodeGatewayTXT(txt TXTRecordMap) (*GatewayInfo, error) {
	info := &GatewayInfo{}

	var ok bool
	if info.Version, ok = txt[TXTKeyVersion]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if info.APIPath, ok = txt[TXTKeyAPI]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPI)
	}
	band, err := decodeBand(txt)
	if err != nil {
		return nil, err
	}
	info.Band = band
	return info, nil
}

// EncodeBridgeTXT creates TXT records for a DPA bridge.
func EncodeBridgeTXT(info *BridgeInfo) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyVersion: info.Version}
	if info.DpaVersion != 0 {
		txt[TXTKeyDpaVersion] = fmt.Sprintf("%04x", info.DpaVersion)
	}
	if info.Band != 0 {
		txt[TXTKeyBand] = strconv.Itoa(int(info.Band))
	}
	if info.ModuleID != "" {
		txt[TXTKeyModuleID] = info.ModuleID
	}
	return txt
}

// DecodeBridgeTXT parses TXT records of a DPA bridge.
func DecodeBridgeTXT(txt TXTRecordMap) (*BridgeInfo, error) {
	info := &BridgeInfo{}

	var ok bool
	if info.Version, ok = txt[TXTKeyVersion]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if v, ok := txt[TXTKeyDpaVersion]; ok {
		n, err := strconv.ParseUint(v, 16, 16)
		if err != nil || len(v) != 4 {
			return nil, fmt.Errorf("%w: invalid DPA version %q", ErrInvalidTXTRecord, v)
		}
		info.DpaVersion = uint16(n)
	}
	band, err := decodeBand(txt)
	if err != nil {
		return nil, err
	}
	info.Band = band
	info.ModuleID = txt[TXTKeyModuleID]
	return info, nil
}

func decodeBand(txt TXTRecordMap) (dpa.RFBand, error) {
	v, ok := txt[TXTKeyBand]
	if !ok {
		return 0, nil
	}
	band, err := dpa.ParseRFBandString(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTXTRecord, err)
	}
	return band, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value"
// strings, sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrEmptyInstanceName
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// txtSize returns the encoded size of records: one length byte per string.
func txtSize(strs []string) int {
	n := 0
	for _, s := range strs {
		n += 1 + len(s)
	}
	return n
}
