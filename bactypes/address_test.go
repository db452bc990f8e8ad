package bactypes

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIPMacParseIPMacRoundTrip(t *testing.T) {
	ip := net.ParseIP("192.168.1.100")
	mac := NewIPMac(ip, 47808)
	assert.Len(t, mac, 6)

	gotIP, gotPort, err := ParseIPMac(mac)
	require.NoError(t, err)
	assert.True(t, gotIP.Equal(ip))
	assert.Equal(t, uint16(47808), gotPort)
}

func TestParseIPMacRejectsWrongLength(t *testing.T) {
	_, _, err := ParseIPMac([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseAddressBareHost(t *testing.T) {
	addr, err := ParseAddress("192.168.1.100")
	require.NoError(t, err)
	assert.True(t, addr.IsLocal())
	assert.False(t, addr.IsBroadcast())

	ip, port, err := ParseIPMac(addr.Mac)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.100", ip.String())
	assert.Equal(t, uint16(47808), port)
}

func TestParseAddressHostPort(t *testing.T) {
	addr, err := ParseAddress("192.168.1.100:47809")
	require.NoError(t, err)
	_, port, err := ParseIPMac(addr.Mac)
	require.NoError(t, err)
	assert.Equal(t, uint16(47809), port)
}

func TestParseAddressRouted(t *testing.T) {
	addr, err := ParseAddress("5:192.168.1.100:47808")
	require.NoError(t, err)
	n, ok := addr.NetworkNumber()
	require.True(t, ok)
	assert.Equal(t, uint16(5), n)
	assert.False(t, addr.IsLocal())
	assert.True(t, addr.Remote())
}

func TestParseAddressInvalid(t *testing.T) {
	_, err := ParseAddress("not-an-ip")
	assert.Error(t, err)

	_, err = ParseAddress("1:2:3:4")
	assert.Error(t, err)

	_, err = ParseAddress("1:not-an-ip:47808")
	assert.Error(t, err)

	_, err = ParseAddress("notanetwork:192.168.1.1:47808")
	assert.Error(t, err)
}

func TestAddressBroadcastHelpers(t *testing.T) {
	lb := LocalBroadcast()
	assert.True(t, lb.IsLocal())
	assert.True(t, lb.IsBroadcast())
	assert.Equal(t, "*", lb.String())

	gb := GlobalBroadcast()
	assert.True(t, gb.IsGlobalBroadcast())
	assert.False(t, gb.IsLocal())
	n, ok := gb.NetworkNumber()
	require.True(t, ok)
	assert.Equal(t, GlobalBroadcastNetwork, n)
}

func TestAddressKeyDistinguishesAddresses(t *testing.T) {
	a, _ := ParseAddress("192.168.1.1")
	b, _ := ParseAddress("192.168.1.2")
	assert.NotEqual(t, a.Key(), b.Key())
}
