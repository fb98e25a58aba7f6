package ui

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/muurk/ssdp/internal/discovery"
)

func TestRenderHeader(t *testing.T) {
	out := RenderHeader("ssdp search", "ssdpctl search ssdp:all", map[string]string{
		"Timeout": "5s",
		"Group":   "239.255.255.250:1900",
	}, 80)

	for _, want := range []string{"SSDP SEARCH", "ssdpctl search ssdp:all", "Group:", "239.255.255.250:1900"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderHeader() missing %q", want)
		}
	}
	if strings.Index(out, "Group:") > strings.Index(out, "Timeout:") {
		t.Error("RenderHeader() params are not sorted")
	}
}

func TestRenderResultBoxes(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{
			name: "success",
			out:  RenderSuccessBox("Announced", map[string]string{"USN": "uuid:1"}, 80),
			want: []string{SuccessMarker, "Announced", "USN:", "uuid:1"},
		},
		{
			name: "error",
			out:  RenderErrorBox("Search failed", errors.New("bind: address in use"), []string{"Check the port"}, 80),
			want: []string{FailureMarker, "Search failed", "bind: address in use", "Troubleshooting:", "Check the port"},
		},
		{
			name: "error without details",
			out:  RenderErrorBox("Search failed", nil, nil, 80),
			want: []string{"Search failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.want {
				if !strings.Contains(tt.out, want) {
					t.Errorf("output missing %q:\n%s", want, tt.out)
				}
			}
		})
	}
}

func TestRenderServiceTable(t *testing.T) {
	services := []*discovery.Service{
		{USN: "uuid:1", Subject: "upnp:rootdevice", Address: net.ParseIP("10.0.0.2"), MaxAge: 1800 * time.Second},
		{USN: "uuid:2", Subject: "urn:x", Location: "http://10.0.0.3/d.xml"},
	}

	out := RenderServiceTable(services, 120)

	for _, want := range []string{"USN", "uuid:1", "10.0.0.2", "1800s", "http://10.0.0.3/d.xml", "2 service(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderServiceTable() missing %q:\n%s", want, out)
		}
	}

	if got := RenderServiceTable(nil, 120); !strings.Contains(got, "No services found") {
		t.Errorf("RenderServiceTable(nil) = %q", got)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintSuccess("Done", nil)
	p.PrintServices(nil)

	out := buf.String()
	if !strings.Contains(out, "Done") || !strings.Contains(out, "No services found") {
		t.Errorf("Printer output = %q", out)
	}
	if p.Width() != 80 {
		t.Errorf("Width() = %d, want 80", p.Width())
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, MinTerminalWidth},
		{100, 100},
		{1000, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
