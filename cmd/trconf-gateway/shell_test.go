package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/api"
)

func TestParseWriteArgs(t *testing.T) {
	req, err := parseWriteArgs([]string{
		"0xff", "hwpid=0x1234", "repeat=2", "txpower=5", "cha=40",
		"frc=on", "uart=off", "band=868", "byte=0x05:0x40:0x40", "coord=on", "verbose=yes",
	})
	require.NoError(t, err)

	assert.Equal(t, api.MTypeWriteTrConf, req.MType)
	p := req.Data.Req
	require.NotNil(t, p.DeviceAddr)
	assert.Equal(t, 0xFF, *p.DeviceAddr)
	assert.Equal(t, 0x1234, *p.HWPID)
	assert.Equal(t, 2, *req.Data.Repeat)
	assert.Equal(t, 5, *p.TxPower)
	assert.Equal(t, 40, *p.RFChannelA)
	require.NotNil(t, p.EmbPers)
	assert.True(t, *p.EmbPers.FRC)
	assert.False(t, *p.EmbPers.UART)
	assert.Nil(t, p.EmbPers.SPI)
	assert.Equal(t, "868", p.RFBand)
	assert.Equal(t, []api.ConfigByte{{Address: 0x05, Value: 0x40, Mask: 0x40}}, p.ConfigBytes)
	assert.True(t, p.IncludeCoordinator)
	assert.True(t, req.Data.ReturnVerbose)
}

func TestParseWriteArgsMinimal(t *testing.T) {
	req, err := parseWriteArgs([]string{"3", "rxfilter=6"})
	require.NoError(t, err)
	assert.Nil(t, req.Data.Req.EmbPers)
	assert.Nil(t, req.Data.Repeat)
	assert.Equal(t, 6, *req.Data.Req.RxFilter)

	// The request passes through the same conversion as the HTTP API.
	require.NoError(t, req.Normalize())
	wr, err := req.WriteRequest()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), wr.DeviceAddr)
}

func TestParseWriteArgsErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"node"},
		{"1", "txpower"},
		{"1", "txpower=high"},
		{"1", "frc=maybe"},
		{"1", "byte=0x05"},
		{"1", "byte=0x05:0x100"},
		{"1", "colour=red"},
	}
	for _, args := range tests {
		if _, err := parseWriteArgs(args); err == nil {
			t.Errorf("parseWriteArgs(%q) succeeded, want error", args)
		}
	}
}

func TestParseConfigByte(t *testing.T) {
	b, err := parseConfigByte("0x08:7")
	require.NoError(t, err)
	assert.Equal(t, api.ConfigByte{Address: 0x08, Value: 7, Mask: 0xFF}, b)

	b, err = parseConfigByte("2:0x20:0x20")
	require.NoError(t, err)
	assert.Equal(t, api.ConfigByte{Address: 2, Value: 0x20, Mask: 0x20}, b)

	_, err = parseConfigByte("1:2:3:4")
	assert.Error(t, err)
}
