package remote

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

const (
	idA = object.Hash("1111111111111111111111111111111111111111")
	idB = object.Hash("2222222222222222222222222222222222222222")
	idC = object.Hash("3333333333333333333333333333333333333333")
)

func pkt(s string) string {
	return fmt.Sprintf("%04x%s", len(s)+4, s)
}

func TestParseAdvertisement(t *testing.T) {
	body := pkt("# service=git-upload-pack\n") + "0000" +
		pkt(string(idA)+" refs/heads/main\x00report-status side-band-64k symref=HEAD:refs/heads/main agent=srv/1\n") +
		pkt(string(idB)+" refs/heads/topic\n") +
		pkt(string(idC)+" refs/tags/v1\n") +
		pkt(string(idA)+" refs/tags/v1^{}\n") +
		"0000"

	adv, err := ParseAdvertisement(strings.NewReader(body), ServiceUploadPack)
	if err != nil {
		t.Fatalf("ParseAdvertisement: %v", err)
	}
	if adv.Refs["refs/heads/main"] != idA || adv.Refs["refs/heads/topic"] != idB {
		t.Errorf("refs = %v", adv.Refs)
	}
	if adv.Refs["refs/tags/v1"] != idC {
		t.Errorf("tag ref missing: %v", adv.Refs)
	}
	if adv.Peeled["refs/tags/v1"] != idA {
		t.Errorf("peeled = %v", adv.Peeled)
	}
	if !adv.Caps.Has(CapSideBand64k) || !adv.Caps.Has(CapReportStatus) {
		t.Errorf("caps = %v", adv.Caps)
	}
	if adv.HeadTarget() != "refs/heads/main" {
		t.Errorf("HeadTarget = %q", adv.HeadTarget())
	}
	want := []string{"refs/heads/main", "refs/heads/topic", "refs/tags/v1"}
	if len(adv.Order) != 3 || adv.Order[0] != want[0] || adv.Order[1] != want[1] || adv.Order[2] != want[2] {
		t.Errorf("order = %v, want %v", adv.Order, want)
	}
}

func TestParseAdvertisementEmptyRepo(t *testing.T) {
	body := pkt("# service=git-receive-pack\n") + "0000" +
		pkt(string(object.ZeroHash)+" capabilities^{}\x00report-status\n") +
		"0000"
	adv, err := ParseAdvertisement(strings.NewReader(body), ServiceReceivePack)
	if err != nil {
		t.Fatalf("ParseAdvertisement: %v", err)
	}
	if !adv.Empty() {
		t.Errorf("Empty = false, refs = %v", adv.Refs)
	}
	if !adv.Caps.Has(CapReportStatus) {
		t.Errorf("caps = %v", adv.Caps)
	}
}

func TestParseAdvertisementWrongService(t *testing.T) {
	body := pkt("# service=git-upload-pack\n") + "00000000"
	_, err := ParseAdvertisement(strings.NewReader(body), ServiceReceivePack)
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("err = %v, want Protocol", err)
	}
}

func TestParseAdvertisementMalformedRef(t *testing.T) {
	body := pkt("# service=git-upload-pack\n") + "0000" + pkt("nonsense\n") + "0000"
	_, err := ParseAdvertisement(strings.NewReader(body), ServiceUploadPack)
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("err = %v, want Protocol", err)
	}
}

func TestAdvertisementRoundTrip(t *testing.T) {
	adv := &Advertisement{
		Service: ServiceUploadPack,
		Refs: map[string]object.Hash{
			"refs/heads/main":  idA,
			"refs/heads/topic": idB,
		},
		Order:  []string{"refs/heads/main", "refs/heads/topic"},
		Peeled: map[string]object.Hash{},
		Caps:   ParseCaps("report-status symref=HEAD:refs/heads/main"),
	}
	var buf bytes.Buffer
	if err := WriteAdvertisement(&buf, adv); err != nil {
		t.Fatalf("WriteAdvertisement: %v", err)
	}
	got, err := ParseAdvertisement(&buf, ServiceUploadPack)
	if err != nil {
		t.Fatalf("ParseAdvertisement: %v", err)
	}
	if got.Refs["refs/heads/main"] != idA || got.HeadTarget() != "refs/heads/main" {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestParseCapsRepeatedSymref(t *testing.T) {
	caps := ParseCaps("report-status symref=HEAD:refs/heads/main symref=refs/remotes/origin/HEAD:refs/remotes/origin/main")
	if got := caps.SymrefTarget("HEAD"); got != "refs/heads/main" {
		t.Errorf("SymrefTarget(HEAD) = %q", got)
	}
	if got := caps.SymrefTarget("refs/remotes/origin/HEAD"); got != "refs/remotes/origin/main" {
		t.Errorf("SymrefTarget(origin/HEAD) = %q", got)
	}
	s := caps.String()
	if !strings.Contains(s, "symref=HEAD:refs/heads/main") ||
		!strings.Contains(s, "symref=refs/remotes/origin/HEAD:refs/remotes/origin/main") {
		t.Errorf("String() dropped a symref: %q", s)
	}
}

func TestCapListString(t *testing.T) {
	caps := ParseCaps("side-band-64k report-status agent=x/1")
	s := caps.String()
	if !strings.Contains(s, "agent=x/1") || !strings.Contains(s, "report-status") {
		t.Fatalf("String() = %q", s)
	}
}
