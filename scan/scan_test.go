package scan

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/42wim/dnsmon/structs"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleAuth = structs.AuthorityMap{
	"b.iana-servers.net.": {net.ParseIP("199.43.133.53")},
	"a.iana-servers.net.": {net.ParseIP("199.43.135.53")},
}

func question(t *testing.T) structs.Question {
	q, err := structs.NewQuestion("example.com", "A")
	require.NoError(t, err)

	return q
}

func TestRunAllAnswer(t *testing.T) {
	answer := fakeReply{answer: rrs(t,
		"example.com. 300 IN A 93.184.216.34",
		"example.com. 60 IN A 93.184.216.35",
	)}
	f := newFake().
		on(local, "example.com.", dns.TypeA, answer).
		on("199.43.135.53:53", "example.com.", dns.TypeA, answer).
		on("199.43.133.53:53", "example.com.", dns.TypeA, answer).
		on("8.8.8.8:53", "example.com.", dns.TypeA, answer)
	s := newTestScan(t, f, &Config{Concurrency: 2})

	res := s.Run(context.Background(), question(t), Targets{
		Authorities: exampleAuth,
		Additional:  []structs.ServerRef{{Address: "8.8.8.8"}},
	}, time.Second)

	require.NotNil(t, res.Local)
	assert.True(t, res.Local.OK())
	assert.Equal(t, "93.184.216.34, 93.184.216.35", res.Local.Answer.String())

	ttl, ok := res.LocalTTL()
	assert.True(t, ok)
	assert.Equal(t, uint32(60), ttl)

	require.Len(t, res.Authorities, 2)
	assert.Equal(t, "a.iana-servers.net.", res.Authorities[0].Server.Name)
	assert.Equal(t, "b.iana-servers.net.", res.Authorities[1].Server.Name)

	for _, o := range res.Remote() {
		assert.True(t, o.OK(), o.Server.String())
	}

	assert.Empty(t, res.Diagnostics)

	for i, k := range f.asked {
		switch k.server {
		case local, "8.8.8.8:53":
			assert.True(t, f.rd[i])
		default:
			assert.False(t, f.rd[i], "authorities are asked without recursion")
		}
	}
}

func TestRunFailuresDoNotAbort(t *testing.T) {
	f := newFake().
		on(local, "example.com.", dns.TypeA, fakeReply{answer: rrs(t, "example.com. 300 IN A 93.184.216.34")}).
		on("199.43.135.53:53", "example.com.", dns.TypeA, fakeReply{answer: rrs(t, "example.com. 300 IN A 93.184.216.34")})
	s := newTestScan(t, f, nil)

	res := s.Run(context.Background(), question(t), Targets{
		Authorities: exampleAuth,
		Additional:  []structs.ServerRef{{Address: "8.8.8.8"}},
	}, time.Second)

	assert.True(t, res.Local.OK())
	assert.True(t, res.Authorities[0].OK())
	assert.Equal(t, structs.FailureTimeout, res.Authorities[1].Failure)
	assert.Equal(t, structs.FailureTimeout, res.Additional[0].Failure)

	assert.Equal(t, []string{
		"Timed out on authority b.iana-servers.net. query",
		"Timed out on additional DNS 8.8.8.8 query",
		"No additional DNS answers received!",
	}, res.Diagnostics)
}

func TestRunLocalTimeout(t *testing.T) {
	s := newTestScan(t, newFake(), nil)

	res := s.Run(context.Background(), question(t), Targets{}, time.Second)

	require.NotNil(t, res.Local)
	assert.Equal(t, structs.FailureTimeout, res.Local.Failure)
	assert.Equal(t, []string{"Timed out on local server 127.0.0.53"}, res.Diagnostics)

	_, ok := res.LocalTTL()
	assert.False(t, ok)
}

func TestRunLocalFailover(t *testing.T) {
	f := newFake().
		on("127.0.0.2:53", "example.com.", dns.TypeA, fakeReply{answer: rrs(t, "example.com. 300 IN A 93.184.216.34")})
	s := newTestScan(t, f, &Config{LocalDNS: []string{"127.0.0.1", "127.0.0.2"}})

	o := s.QueryLocal(context.Background(), question(t), time.Second)
	assert.True(t, o.OK())
	assert.Equal(t, "127.0.0.2", o.Server.Address)
	assert.Equal(t, 2, f.count("", dns.TypeA))
}

func TestRunOmitLocal(t *testing.T) {
	f := newFake()
	s := newTestScan(t, f, nil)

	res := s.Run(context.Background(), question(t), Targets{OmitLocal: true, Authorities: exampleAuth}, time.Second)

	assert.Nil(t, res.Local)
	assert.Len(t, res.Authorities, 2)
	assert.Equal(t, 0, f.count(local, dns.TypeA))
}

func TestRunFailureTags(t *testing.T) {
	f := newFake().
		on(local, "example.com.", dns.TypeA, fakeReply{rcode: dns.RcodeNameError}).
		on("199.43.135.53:53", "example.com.", dns.TypeA, fakeReply{rcode: dns.RcodeServerFailure}).
		on("199.43.133.53:53", "example.com.", dns.TypeA, fakeReply{answer: rrs(t, "www.example.com. 300 IN CNAME example.com.")}).
		on("8.8.8.8:53", "example.com.", dns.TypeA, fakeReply{err: errors.New("connection refused")})
	s := newTestScan(t, f, nil)

	res := s.Run(context.Background(), question(t), Targets{
		Authorities: exampleAuth,
		Additional:  []structs.ServerRef{{Address: "8.8.8.8"}},
	}, time.Second)

	assert.Equal(t, structs.FailureNameError, res.Local.Failure)
	assert.Equal(t, structs.FailureServer, res.Authorities[0].Failure)
	assert.Equal(t, structs.FailureNoAnswer, res.Authorities[1].Failure)
	assert.Equal(t, structs.FailureTransport, res.Additional[0].Failure)
	assert.Contains(t, res.Diagnostics, "No additional DNS answers received!")
	assert.Contains(t, res.Diagnostics, "local server 127.0.0.53 returned NXDOMAIN")
}

func TestLocalServersFromResolvConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 192.0.2.53\nnameserver 192.0.2.54\n"), 0o600))

	s, err := New(&Config{ResolvConf: path}, newFake())
	require.NoError(t, err)
	assert.Equal(t, []structs.ServerRef{{Address: "192.0.2.53:53"}, {Address: "192.0.2.54:53"}}, s.Local())

	_, err = New(&Config{ResolvConf: filepath.Join(t.TempDir(), "missing")}, newFake())
	assert.Error(t, err)
}
