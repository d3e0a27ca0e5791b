package dns

import (
	"context"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveTXT answers TXT queries from records and NXDOMAIN for any other name.
func serveTXT(t *testing.T, records map[string][]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if resp := answer(buf[:n], records); resp != nil {
				_, _ = pc.WriteTo(resp, addr)
			}
		}
	}()
	return pc.LocalAddr().String()
}

func answer(query []byte, records map[string][]string) []byte {
	if len(query) < 12 {
		return nil
	}
	var labels []string
	i := 12
	for i < len(query) && query[i] != 0 {
		l := int(query[i])
		if i+1+l > len(query) {
			return nil
		}
		labels = append(labels, string(query[i+1:i+1+l]))
		i += 1 + l
	}
	end := i + 5
	if end > len(query) {
		return nil
	}
	name := strings.ToLower(strings.Join(labels, "."))
	values, ok := records[name]

	resp := make([]byte, 12, 512)
	copy(resp[0:2], query[0:2])
	flags := uint16(0x8180)
	if !ok {
		flags |= 3
	}
	binary.BigEndian.PutUint16(resp[2:4], flags)
	binary.BigEndian.PutUint16(resp[4:6], 1)
	binary.BigEndian.PutUint16(resp[6:8], uint16(len(values)))
	resp = append(resp, query[12:end]...)
	for _, v := range values {
		resp = append(resp, 0xC0, 0x0C, 0, 16, 0, 1, 0, 0, 0, 60)
		resp = binary.BigEndian.AppendUint16(resp, uint16(len(v)+1))
		resp = append(resp, byte(len(v)))
		resp = append(resp, v...)
	}
	return resp
}

func TestLookupTXT(t *testing.T) {
	addr := serveTXT(t, map[string][]string{
		"_lighthouse-verify.example.com": {"v=spf1 -all", "token-123"},
	})
	r := NewResolver(addr, 2*time.Second)

	values, err := r.LookupTXT(context.Background(), "_lighthouse-verify.example.com.")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v=spf1 -all", "token-123"}, values)
}

func TestLookupTXTMissingNameIsEmpty(t *testing.T) {
	addr := serveTXT(t, map[string][]string{})
	r := NewResolver(addr, 2*time.Second)

	values, err := r.LookupTXT(context.Background(), "_lighthouse-verify.missing.example.")
	require.NoError(t, err)
	assert.Empty(t, values)
}
