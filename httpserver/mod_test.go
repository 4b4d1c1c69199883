package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type state string

func (s state) String() string {
	return string(s)
}

type fakeSession struct{}

func (fakeSession) ID() string {
	return "abc"
}

func (fakeSession) State() fmt.Stringer {
	return state("complete")
}

func Test_HTTP_Session(t *testing.T) {
	srv := httptest.NewServer(NewServer(1, fakeSession{}, prometheus.NewRegistry()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := Status{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, Status{Party: 1, Session: "abc", State: "complete"}, status)

	post, err := http.Post(srv.URL+"/session", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)

	other, err := http.Get(srv.URL + "/peer")
	require.NoError(t, err)
	other.Body.Close()
	require.Equal(t, http.StatusNotFound, other.StatusCode)
}

func Test_HTTP_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "mpcstats_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	srv := httptest.NewServer(NewServer(0, fakeSession{}, reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "mpcstats_test_total 3")
}
