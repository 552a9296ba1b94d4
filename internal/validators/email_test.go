package validators

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	mx  map[string]bool
	ips map[string]bool
}

func (f fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if f.mx[name] {
		return []*net.MX{{Host: "mx." + name, Pref: 10}}, nil
	}
	return nil, errors.New("no mx")
}

func (f fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if f.ips[host] {
		return []net.IPAddr{{IP: net.IPv4(10, 0, 0, 1)}}, nil
	}
	return nil, errors.New("no host")
}

func TestIsEmailDomainValid(t *testing.T) {
	prev := DefaultResolver
	t.Cleanup(func() { DefaultResolver = prev })
	DefaultResolver = fakeResolver{
		mx:  map[string]bool{"garage.example": true},
		ips: map[string]bool{"bare.example": true},
	}

	assert.True(t, IsEmailDomainValid("ana@garage.example"))
	assert.True(t, IsEmailDomainValid("ana@bare.example"), "A record is enough without MX")
	assert.False(t, IsEmailDomainValid("ana@nowhere.example"))
	assert.False(t, IsEmailDomainValid("ana@"))
	assert.False(t, IsEmailDomainValid("no-at-sign"))
}

func TestNormalizeEmail(t *testing.T) {
	got, ok := NormalizeEmail("  Ana@Garage.Example ")
	assert.True(t, ok)
	assert.Equal(t, "ana@garage.example", got)

	_, ok = NormalizeEmail("Ana <ana@garage.example>")
	assert.False(t, ok)

	_, ok = NormalizeEmail("not an address")
	assert.False(t, ok)
}
