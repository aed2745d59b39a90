package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "monitor360.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func ptr[T any](v T) *T { return &v }

// seedSensor builds device -> monitor -> sensor for one tenant and returns
// the sensor.
func seedSensor(t *testing.T, s *Store, owner, ip string) Sensor {
	t.Helper()
	ctx := context.Background()
	dev, err := s.CreateDevice(ctx, Device{OwnerID: owner, ClientName: "client-" + ip, IP: ip, Status: "active"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	mon, err := s.CreateMonitor(ctx, owner, dev.ID)
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}
	sn, err := s.CreateSensor(ctx, owner, mon.ID, KindPing, "ping "+ip, json.RawMessage(`{"interval_sec": 5}`))
	if err != nil {
		t.Fatalf("CreateSensor() error = %v", err)
	}
	return sn
}

func TestOpenCreatesParentDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "deeper", "m.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCredentialLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCredential(ctx, Credential{OwnerID: "acme", Name: "core", Username: "admin", Password: "s3cret"})
	if err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	if c.ID == 0 {
		t.Fatal("CreateCredential() assigned no ID")
	}

	// Same name for another tenant is fine; for the same tenant it conflicts.
	if _, err := s.CreateCredential(ctx, Credential{OwnerID: "globex", Name: "core", Username: "admin", Password: "x"}); err != nil {
		t.Fatalf("CreateCredential() cross-tenant error = %v", err)
	}
	_, err = s.CreateCredential(ctx, Credential{OwnerID: "acme", Name: "core", Username: "other", Password: "y"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("CreateCredential() duplicate error = %v, want ErrConflict", err)
	}

	list, err := s.Credentials(ctx, "acme")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got, want := len(list), 1; got != want {
		t.Fatalf("len(Credentials()) = %d, want %d", got, want)
	}
	if got, want := list[0].Username, "admin"; got != want {
		t.Errorf("Username = %q, want %q", got, want)
	}

	got, err := s.CredentialByID(ctx, "acme", c.ID)
	if err != nil {
		t.Fatalf("CredentialByID() error = %v", err)
	}
	if got.Password != "s3cret" {
		t.Errorf("Password = %q, want %q", got.Password, "s3cret")
	}
	if _, err := s.CredentialByID(ctx, "globex", c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("CredentialByID() other tenant error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteCredential(ctx, "acme", c.ID); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if err := s.DeleteCredential(ctx, "acme", c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteCredential() repeat error = %v, want ErrNotFound", err)
	}
}

func TestProfileDefaultSwitch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "hq", ConfigText: "[Interface]\n", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	second, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "branch", ConfigText: "[Interface]\n"})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	// Default in another tenant must not be disturbed by acme's switches.
	other, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "globex", Name: "hq", ConfigText: "[Interface]\n", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	if err := s.UpdateProfile(ctx, "acme", second.ID, ProfileUpdate{IsDefault: ptr(true)}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	def, ok, err := s.DefaultProfile(ctx, "acme")
	if err != nil || !ok {
		t.Fatalf("DefaultProfile() = ok=%v, err=%v", ok, err)
	}
	if got, want := def.ID, second.ID; got != want {
		t.Errorf("default profile ID = %d, want %d", got, want)
	}
	demoted, err := s.ProfileByID(ctx, "acme", first.ID)
	if err != nil {
		t.Fatalf("ProfileByID() error = %v", err)
	}
	if demoted.IsDefault {
		t.Error("previous default was not cleared")
	}
	untouched, err := s.ProfileByID(ctx, "globex", other.ID)
	if err != nil {
		t.Fatalf("ProfileByID() error = %v", err)
	}
	if !untouched.IsDefault {
		t.Error("other tenant's default was cleared")
	}
}

func TestCreateProfileDefaultDisplacesPrevious(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "hq", ConfigText: "a", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	second, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "branch", ConfigText: "b", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	def, ok, err := s.DefaultProfile(ctx, "acme")
	if err != nil || !ok {
		t.Fatalf("DefaultProfile() = ok=%v, err=%v", ok, err)
	}
	if got, want := def.ID, second.ID; got != want {
		t.Errorf("default profile ID = %d, want %d", got, want)
	}
	old, err := s.ProfileByID(ctx, "acme", first.ID)
	if err != nil {
		t.Fatalf("ProfileByID() error = %v", err)
	}
	if old.IsDefault {
		t.Error("first profile kept the default flag")
	}
}

func TestUpdateProfileRenameConflict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "hq", ConfigText: "a"}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	p, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "branch", ConfigText: "b"})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	err = s.UpdateProfile(ctx, "acme", p.ID, ProfileUpdate{Name: ptr("hq")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("UpdateProfile() rename error = %v, want ErrConflict", err)
	}
	if err := s.UpdateProfile(ctx, "acme", p.ID, ProfileUpdate{ConfigText: ptr("c"), CheckIP: ptr("10.0.0.1")}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	got, err := s.ProfileByID(ctx, "acme", p.ID)
	if err != nil {
		t.Fatalf("ProfileByID() error = %v", err)
	}
	if got.ConfigText != "c" || got.CheckIP != "10.0.0.1" || got.Name != "branch" {
		t.Errorf("profile after update = %+v", got)
	}
}

func TestDeleteProfileInUse(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "hq", ConfigText: "x"})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if _, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "edge-router", IP: "10.1.1.1", Status: "active", VpnProfileID: ptr(p.ID)}); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	err = s.DeleteProfile(ctx, "acme", p.ID)
	if !errors.Is(err, ErrProfileInUse) {
		t.Fatalf("DeleteProfile() error = %v, want ErrProfileInUse", err)
	}
	if !strings.Contains(err.Error(), "edge-router") {
		t.Errorf("DeleteProfile() error %q does not name the device", err)
	}
}

func TestCreateDeviceAssignsUUIDAndGuardsIP(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "alpha", IP: "10.9.0.1", Status: "active"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if d.ID == "" {
		t.Fatal("CreateDevice() assigned no ID")
	}

	// IP uniqueness holds across tenants.
	_, err = s.CreateDevice(ctx, Device{OwnerID: "globex", ClientName: "beta", IP: "10.9.0.1", Status: "active"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("CreateDevice() duplicate IP error = %v, want ErrConflict", err)
	}
}

func TestDevicesFilterAndSearch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "central-maestro", IP: "10.2.0.1", Status: "active", IsMaestro: true}); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if _, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "branch-a", IP: "10.2.0.2", Status: "active"}); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if _, err := s.CreateDevice(ctx, Device{OwnerID: "globex", ClientName: "branch-g", IP: "10.3.0.2", Status: "active"}); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	all, err := s.Devices(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if got, want := len(all), 2; got != want {
		t.Fatalf("len(Devices()) = %d, want %d", got, want)
	}

	maestros, err := s.Devices(ctx, "acme", ptr(true))
	if err != nil {
		t.Fatalf("Devices(maestro) error = %v", err)
	}
	if len(maestros) != 1 || maestros[0].ClientName != "central-maestro" {
		t.Errorf("Devices(maestro) = %+v, want just central-maestro", maestros)
	}

	tests := []struct {
		term string
		want int
	}{
		{"branch", 1}, // only acme's
		{"10.2.0", 2},
		{"nothing", 0},
		{"", 0},
	}
	for _, tt := range tests {
		found, err := s.SearchDevices(ctx, "acme", tt.term)
		if err != nil {
			t.Fatalf("SearchDevices(%q) error = %v", tt.term, err)
		}
		if got := len(found); got != tt.want {
			t.Errorf("SearchDevices(%q) returned %d devices, want %d", tt.term, got, tt.want)
		}
	}
}

func TestPromoteAndAssociateVPN(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	maestro, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "m", IP: "10.4.0.1", Status: "active", IsMaestro: true})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	d, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "d", IP: "10.4.0.2", Status: "active", MaestroID: ptr(maestro.ID)})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := s.PromoteDevice(ctx, "acme", d.ID); err != nil {
		t.Fatalf("PromoteDevice() error = %v", err)
	}
	got, err := s.DeviceByID(ctx, "acme", d.ID)
	if err != nil {
		t.Fatalf("DeviceByID() error = %v", err)
	}
	if !got.IsMaestro || got.MaestroID != nil {
		t.Errorf("after promote: IsMaestro=%v MaestroID=%v, want true/nil", got.IsMaestro, got.MaestroID)
	}

	p, err := s.CreateProfile(ctx, VpnProfile{OwnerID: "acme", Name: "hq", ConfigText: "x"})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if err := s.AssociateVPN(ctx, "acme", d.ID, ptr(p.ID)); err != nil {
		t.Fatalf("AssociateVPN() error = %v", err)
	}
	got, _ = s.DeviceByID(ctx, "acme", d.ID)
	if got.VpnProfileID == nil || *got.VpnProfileID != p.ID {
		t.Errorf("VpnProfileID = %v, want %d", got.VpnProfileID, p.ID)
	}
	if err := s.AssociateVPN(ctx, "acme", d.ID, nil); err != nil {
		t.Fatalf("AssociateVPN(nil) error = %v", err)
	}
	got, _ = s.DeviceByID(ctx, "acme", d.ID)
	if got.VpnProfileID != nil {
		t.Errorf("VpnProfileID = %v, want nil", got.VpnProfileID)
	}

	if err := s.PromoteDevice(ctx, "globex", d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("PromoteDevice() other tenant error = %v, want ErrNotFound", err)
	}
}

func TestMonitorPerDevice(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "solo", IP: "10.5.0.1", Status: "active"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if _, err := s.CreateMonitor(ctx, "acme", d.ID); err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}
	if _, err := s.CreateMonitor(ctx, "acme", d.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("CreateMonitor() second error = %v, want ErrConflict", err)
	}
	if _, err := s.CreateMonitor(ctx, "globex", d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateMonitor() other tenant error = %v, want ErrNotFound", err)
	}
}

func TestMonitorsWithSensors(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDevice(ctx, Device{OwnerID: "acme", ClientName: "edge", IP: "10.6.0.1", Status: "active"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	mon, err := s.CreateMonitor(ctx, "acme", d.ID)
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}
	if _, err := s.CreateSensor(ctx, "acme", mon.ID, KindPing, "latency", nil); err != nil {
		t.Fatalf("CreateSensor() error = %v", err)
	}
	if _, err := s.CreateSensor(ctx, "acme", mon.ID, KindEthernet, "uplink", json.RawMessage(`{"interface_name":"ether1"}`)); err != nil {
		t.Fatalf("CreateSensor() error = %v", err)
	}
	seedSensor(t, s, "globex", "10.7.0.1")

	views, err := s.MonitorsWithSensors(ctx, "acme")
	if err != nil {
		t.Fatalf("MonitorsWithSensors() error = %v", err)
	}
	if got, want := len(views), 1; got != want {
		t.Fatalf("len(views) = %d, want %d", got, want)
	}
	v := views[0]
	if v.DeviceID != d.ID || v.ClientName != "edge" || v.IP != "10.6.0.1" {
		t.Errorf("view device fields = %+v", v)
	}
	if got, want := len(v.Sensors), 2; got != want {
		t.Fatalf("len(view.Sensors) = %d, want %d", got, want)
	}
	if v.Sensors[0].Kind != KindPing || v.Sensors[1].Kind != KindEthernet {
		t.Errorf("sensor kinds = %q, %q", v.Sensors[0].Kind, v.Sensors[1].Kind)
	}
}

func TestSensorUpdateAndScoping(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.8.0.1")

	updated, err := s.UpdateSensor(ctx, "acme", sn.ID, "renamed", json.RawMessage(`{"interval_sec":2.5}`))
	if err != nil {
		t.Fatalf("UpdateSensor() error = %v", err)
	}
	if got, want := updated.Name, "renamed"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if got, want := updated.ParseConfig().IntervalSec, 2.5; got != want {
		t.Errorf("IntervalSec = %v, want %v", got, want)
	}

	if _, err := s.UpdateSensor(ctx, "globex", sn.ID, "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSensor() other tenant error = %v, want ErrNotFound", err)
	}
	if _, err := s.SensorByID(ctx, "globex", sn.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("SensorByID() other tenant error = %v, want ErrNotFound", err)
	}
}

func TestSensorRuntimeJoinsDevice(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.10.0.1")

	rt, err := s.SensorRuntime(ctx, sn.ID)
	if err != nil {
		t.Fatalf("SensorRuntime() error = %v", err)
	}
	if got, want := rt.Sensor.ID, sn.ID; got != want {
		t.Errorf("Sensor.ID = %d, want %d", got, want)
	}
	if got, want := rt.Device.IP, "10.10.0.1"; got != want {
		t.Errorf("Device.IP = %q, want %q", got, want)
	}
	if got, want := rt.Sensor.OwnerID, "acme"; got != want {
		t.Errorf("Sensor.OwnerID = %q, want %q", got, want)
	}

	if _, err := s.SensorRuntime(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("SensorRuntime(9999) error = %v, want ErrNotFound", err)
	}
}

func TestAllSensorIDsSpansTenants(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := seedSensor(t, s, "acme", "10.11.0.1")
	b := seedSensor(t, s, "globex", "10.11.0.2")

	ids, err := s.AllSensorIDs(ctx)
	if err != nil {
		t.Fatalf("AllSensorIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("AllSensorIDs() = %v, want [%d %d]", ids, a.ID, b.ID)
	}
}

func TestLatestAndRangeSamples(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.12.0.1")

	if _, ok, err := s.LatestPingSample(ctx, sn.ID); err != nil || ok {
		t.Fatalf("LatestPingSample() empty = ok=%v, err=%v, want ok=false", ok, err)
	}

	stamps := []string{
		"2026-03-01T10:00:00.000Z",
		"2026-03-01T10:01:00.000Z",
		"2026-03-01T10:02:00.000Z",
	}
	if err := s.InsertPingSample(ctx, sn.ID, "ok", ptr(12.0), stamps[0]); err != nil {
		t.Fatalf("InsertPingSample() error = %v", err)
	}
	if err := s.InsertPingSample(ctx, sn.ID, "timeout", nil, stamps[1]); err != nil {
		t.Fatalf("InsertPingSample() error = %v", err)
	}
	if err := s.InsertPingSample(ctx, sn.ID, "ok", ptr(34.5), stamps[2]); err != nil {
		t.Fatalf("InsertPingSample() error = %v", err)
	}

	latest, ok, err := s.LatestPingSample(ctx, sn.ID)
	if err != nil || !ok {
		t.Fatalf("LatestPingSample() = ok=%v, err=%v", ok, err)
	}
	if latest.Timestamp != stamps[2] || latest.LatencyMS == nil || *latest.LatencyMS != 34.5 {
		t.Errorf("latest = %+v, want newest sample", latest)
	}

	window, err := s.PingSamplesRange(ctx, sn.ID, stamps[0], stamps[1])
	if err != nil {
		t.Fatalf("PingSamplesRange() error = %v", err)
	}
	if got, want := len(window), 2; got != want {
		t.Fatalf("len(window) = %d, want %d", got, want)
	}
	if window[1].Status != "timeout" || window[1].LatencyMS != nil {
		t.Errorf("degraded sample = %+v, want status=timeout latency=nil", window[1])
	}
}

func TestEthernetSamples(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.13.0.1")

	if err := s.InsertEthernetSample(ctx, sn.ID, "link_up", "1Gbps", "12000000", "8000000", "2026-03-01T10:00:00.000Z"); err != nil {
		t.Fatalf("InsertEthernetSample() error = %v", err)
	}
	if err := s.InsertEthernetSample(ctx, sn.ID, "link_down", "N/A", "0", "0", "2026-03-01T10:00:30.000Z"); err != nil {
		t.Fatalf("InsertEthernetSample() error = %v", err)
	}

	latest, ok, err := s.LatestEthernetSample(ctx, sn.ID)
	if err != nil || !ok {
		t.Fatalf("LatestEthernetSample() = ok=%v, err=%v", ok, err)
	}
	if latest.Status != "link_down" || latest.Speed != "N/A" {
		t.Errorf("latest = %+v, want the degraded sample", latest)
	}

	window, err := s.EthernetSamplesRange(ctx, sn.ID, "2026-03-01T00:00:00.000Z", "2026-03-02T00:00:00.000Z")
	if err != nil {
		t.Fatalf("EthernetSamplesRange() error = %v", err)
	}
	if got, want := len(window), 2; got != want {
		t.Errorf("len(window) = %d, want %d", got, want)
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.14.0.1")
	if err := s.InsertPingSample(ctx, sn.ID, "ok", ptr(5.0), "2026-03-01T10:00:00.000Z"); err != nil {
		t.Fatalf("InsertPingSample() error = %v", err)
	}

	ids, err := s.SensorIDsForDevice(ctx, "acme", deviceOf(t, s, sn))
	if err != nil {
		t.Fatalf("SensorIDsForDevice() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != sn.ID {
		t.Fatalf("SensorIDsForDevice() = %v, want [%d]", ids, sn.ID)
	}

	if err := s.DeleteDevice(ctx, "acme", deviceOf(t, s, sn)); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if _, err := s.SensorByID(ctx, "acme", sn.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("sensor survived device delete: err = %v", err)
	}
	if _, ok, err := s.LatestPingSample(ctx, sn.ID); err != nil || ok {
		t.Errorf("samples survived device delete: ok=%v err=%v", ok, err)
	}
	views, err := s.MonitorsWithSensors(ctx, "acme")
	if err != nil {
		t.Fatalf("MonitorsWithSensors() error = %v", err)
	}
	if len(views) != 0 {
		t.Errorf("monitor survived device delete: %+v", views)
	}
}

// deviceOf resolves the device a seeded sensor hangs off.
func deviceOf(t *testing.T, s *Store, sn Sensor) string {
	t.Helper()
	rt, err := s.SensorRuntime(context.Background(), sn.ID)
	if err != nil {
		t.Fatalf("SensorRuntime() error = %v", err)
	}
	return rt.Device.ID
}

func TestAlertHistory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	sn := seedSensor(t, s, "acme", "10.15.0.1")
	ch, err := s.CreateChannel(ctx, Channel{OwnerID: "acme", Name: "ops", Kind: ChannelWebhook, Config: json.RawMessage(`{"url":"http://example.invalid"}`)})
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}

	if err := s.InsertAlert(ctx, sn.ID, ch.ID, `{"reason":"first"}`, "2026-03-01T10:00:00.000Z"); err != nil {
		t.Fatalf("InsertAlert() error = %v", err)
	}
	if err := s.InsertAlert(ctx, sn.ID, ch.ID, `{"reason":"second"}`, "2026-03-01T10:05:00.000Z"); err != nil {
		t.Fatalf("InsertAlert() error = %v", err)
	}

	hist, err := s.AlertHistory(ctx, "acme")
	if err != nil {
		t.Fatalf("AlertHistory() error = %v", err)
	}
	if got, want := len(hist), 2; got != want {
		t.Fatalf("len(AlertHistory()) = %d, want %d", got, want)
	}
	if !strings.Contains(hist[0].Details, "second") {
		t.Errorf("history not newest-first: %+v", hist)
	}
	if hist[0].SensorName == "" || hist[0].ChannelName != "ops" {
		t.Errorf("join fields missing: %+v", hist[0])
	}

	other, err := s.AlertHistory(ctx, "globex")
	if err != nil {
		t.Fatalf("AlertHistory() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("alert history leaked across tenants: %+v", other)
	}

	if err := s.DeleteChannel(ctx, "acme", ch.ID); err != nil {
		t.Fatalf("DeleteChannel() error = %v", err)
	}
	hist, err = s.AlertHistory(ctx, "acme")
	if err != nil {
		t.Fatalf("AlertHistory() error = %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("history survived channel delete: %+v", hist)
	}
}

func TestChannelNameConflict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateChannel(ctx, Channel{OwnerID: "acme", Name: "ops", Kind: ChannelWebhook, Config: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	_, err := s.CreateChannel(ctx, Channel{OwnerID: "acme", Name: "ops", Kind: ChannelTelegram, Config: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("CreateChannel() duplicate error = %v, want ErrConflict", err)
	}
	if _, err := s.CreateChannel(ctx, Channel{OwnerID: "globex", Name: "ops", Kind: ChannelWebhook, Config: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("CreateChannel() cross-tenant error = %v", err)
	}
}
