package dpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCfgByteRequest(t *testing.T) {
	bytes := []ConfigByte{{0x05, 0x40, 0x40}, {0x08, 7, 0xFF}}
	req, err := WriteCfgByteRequest(7, HWPIDDoNotCheck, bytes)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x40, 0x40, 0x08, 7, 0xFF}, req.PData)

	back, err := ParseConfigBytes(req.PData)
	require.NoError(t, err)
	assert.Equal(t, bytes, back)

	_, err = WriteCfgByteRequest(7, HWPIDDoNotCheck, make([]ConfigByte, MaxTripletsPerRequest+1))
	assert.ErrorIs(t, err, ErrDataTooLong)
}

func TestHWPConfiguration(t *testing.T) {
	pdata := make([]byte, 1+ConfigurationLen+1+1)
	pdata[0] = 0x5A
	pdata[2] = FrcEnableMask
	pdata[1+ConfigurationLen] = 0xC3
	pdata[2+ConfigurationLen] = 0x02

	cfg, err := ParseHWPConfiguration(pdata)
	require.NoError(t, err)
	assert.True(t, cfg.FrcEnabled())
	assert.Equal(t, uint8(0xC3), cfg.Byte(RFPGMAddress))
	band, err := cfg.RFBand()
	require.NoError(t, err)
	assert.Equal(t, RFBand433, band)

	cfg.SetByte(0x02, 0)
	assert.False(t, cfg.FrcEnabled())

	req := WriteCfgRequest(1, cfg)
	assert.Equal(t, CmdOSWriteCfg, req.PCMD)
	assert.Len(t, req.PData, 33)
	assert.Equal(t, uint8(0xC3), req.PData[32])
}

func TestSecurityPayload(t *testing.T) {
	p, err := SecurityPayload(SecurityUserKey, []byte("abc"))
	require.NoError(t, err)
	require.Len(t, p, 17)
	assert.Equal(t, uint8(SecurityUserKey), p[0])
	assert.Equal(t, []byte("abc"), p[1:4])
	assert.Equal(t, make([]byte, 13), p[4:])

	_, err = SecurityPayload(SecurityPassword, make([]byte, 17))
	assert.ErrorIs(t, err, ErrKeyTooLong)
}

func TestRFBand(t *testing.T) {
	b, err := ParseRFBandString("916")
	require.NoError(t, err)
	assert.Equal(t, RFBand916, b)
	assert.Equal(t, uint8(255), b.MaxChannel())

	_, err = ParseRFBandString("915")
	assert.ErrorIs(t, err, ErrUnknownBand)
	_, err = ParseRFBand(0b11)
	assert.ErrorIs(t, err, ErrUnknownBand)
	assert.Equal(t, uint8(67), RFBand868.MaxChannel())
}

func TestPerInfo(t *testing.T) {
	info := PerInfo{DpaVersion: 0x0415, EmbeddedPers: [4]byte{0x05, 0x20}, HWPID: 0x1234}
	parsed, err := ParsePerInfo(info.Payload())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0415), parsed.DpaVersion)
	assert.True(t, parsed.HasPeripheral(PNUMCoordinator))
	assert.True(t, parsed.HasPeripheral(PNUMOS))
	assert.False(t, parsed.HasPeripheral(PNUMNode))
	assert.True(t, parsed.HasPeripheral(PNUMFRC))
}

func TestBondedDevices(t *testing.T) {
	nodes, err := ParseBondedDevices(BondedDevicesPayload([]uint16{0, 1, 5, 0xEF}))
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 5, 0xEF}, nodes)

	_, err = ParseBondedDevices([]byte{1})
	assert.ErrorIs(t, err, ErrUnexpectedLength)
}
