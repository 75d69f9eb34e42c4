package dpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeBitmap(t *testing.T) {
	bm, err := NodeBitmap([]uint16{1, 2, 9, 0xEF})
	require.NoError(t, err)
	assert.Equal(t, byte(0x06), bm[0])
	assert.Equal(t, byte(0x02), bm[1])
	assert.Equal(t, byte(0x80), bm[29])

	assert.Equal(t, []uint16{1, 2, 9, 0xEF}, BitmapNodes(bm[:], MaxNodeAddress))

	_, err = NodeBitmap([]uint16{0xF0})
	assert.Error(t, err)
}

func TestFrcSendSelectiveLayout(t *testing.T) {
	triplets, err := WriteCfgByteRequest(0, HWPIDDoNotCheck, []ConfigByte{{Address: 0x11, Value: 10, Mask: 0xFF}})
	require.NoError(t, err)
	user, err := EmbeddedRequest(PNUMOS, CmdOSWriteCfgByte, HWPIDDoNotCheck, triplets.PData)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, PNUMOS, CmdOSWriteCfgByte, 0xFF, 0xFF, 0x11, 10, 0xFF}, user)

	req, err := FrcSendSelectiveRequest(FrcAcknowledgedBroadcastBits, []uint16{3, 4}, user)
	require.NoError(t, err)
	assert.Equal(t, CoordinatorAddress, req.NADR)
	assert.Equal(t, PNUMFRC, req.PNUM)
	assert.Equal(t, CmdFRCSendSelective, req.PCMD)
	require.Len(t, req.PData, 1+SelectedNodesLen+len(user))
	assert.Equal(t, FrcAcknowledgedBroadcastBits, req.PData[0])
	assert.Equal(t, byte(0x18), req.PData[1])

	parsed, err := ParseFrcSendSelective(req.PData)
	require.NoError(t, err)
	assert.Equal(t, []uint16{3, 4}, parsed.SelectedNodes)
	assert.Equal(t, user, parsed.UserData)
}

func TestEmbeddedRequestTooLong(t *testing.T) {
	_, err := EmbeddedRequest(PNUMOS, CmdOSWriteCfgByte, HWPIDDoNotCheck, make([]byte, 21))
	assert.ErrorIs(t, err, ErrDataTooLong)
}

func TestEmbeddedTripletCapacity(t *testing.T) {
	assert.Equal(t, 6, EmbeddedTripletsMax)
	assert.Equal(t, 18, MaxTripletsPerRequest)
}

func TestSplitPlanes(t *testing.T) {
	var want AckPlanes
	want.Set(1, true, false)
	want.Set(2, false, true)
	want.Set(200, true, true)

	got := SplitPlanes(want.Bytes())
	for _, addr := range []uint16{1, 2, 3, 200} {
		b0, b1 := got.Bits(addr)
		w0, w1 := want.Bits(addr)
		assert.Equal(t, w0, b0, "bit0 of %d", addr)
		assert.Equal(t, w1, b1, "bit1 of %d", addr)
	}

	// Short data leaves the second plane empty.
	short := SplitPlanes([]byte{0x02})
	b0, b1 := short.Bits(1)
	assert.True(t, b0)
	assert.False(t, b1)
}

func TestParseFrcSendResult(t *testing.T) {
	pdata := append([]byte{0x05}, make([]byte, FrcSendDataLen+4)...)
	res, err := ParseFrcSendResult(pdata)
	require.NoError(t, err)
	assert.True(t, res.StatusValid())
	assert.Len(t, res.Data, FrcSendDataLen)

	res, err = ParseFrcSendResult([]byte{0xFD})
	require.NoError(t, err)
	assert.False(t, res.StatusValid())

	_, err = ParseFrcSendResult(nil)
	assert.ErrorIs(t, err, ErrUnexpectedLength)
}

func TestFrcSetParams(t *testing.T) {
	req := FrcSetParamsRequest(0)
	assert.Equal(t, []byte{0}, req.PData)
	prev, err := ParseFrcSetParams([]byte{0x14})
	require.NoError(t, err)
	assert.Equal(t, uint8(0x14), prev)
}

func TestJoinFrcData(t *testing.T) {
	var p AckPlanes
	p.Set(1, true, true)
	p.Set(200, false, true)
	full := p.Bytes()

	got := JoinFrcData(full[:FrcSendDataLen], full[FrcSendDataLen:])
	assert.Equal(t, full, got)

	short := JoinFrcData(full[:FrcPlaneLen], full[FrcSendDataLen:])
	require.Len(t, short, FrcDataLen)
	planes := SplitPlanes(short)
	bit0, bit1 := planes.Bits(200)
	assert.False(t, bit0)
	assert.True(t, bit1)
	bit0, bit1 = planes.Bits(1)
	assert.True(t, bit0)
	assert.False(t, bit1)

	long := JoinFrcData(make([]byte, 60), make([]byte, 20))
	assert.Len(t, long, FrcDataLen)
}
