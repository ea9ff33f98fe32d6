package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRegistrySetAndScrape(t *testing.T) {
	reg := New("protocolsvc")
	reg.OpenConnections.Set(3)
	reg.RequestsTotal.WithLabelValues("artifact_read").Inc()

	srv := httptest.NewServer(NewServer("", reg, logrus.NewEntry(logrus.New())).router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "agentd_protocolsvc_open_connections 3") {
		t.Fatalf("scrape output missing open_connections gauge: %s", body)
	}
}

func TestServerHealthz(t *testing.T) {
	reg := New("datasvc")
	srv := httptest.NewServer(NewServer("", reg, logrus.NewEntry(logrus.New())).router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
