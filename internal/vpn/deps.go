package vpn

import (
	"context"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// Commander runs wg-quick, wg and ip under the WireGuard environment.
// *shell.WG satisfies it; tests substitute a scripted fake.
type Commander interface {
	Cmd(ctx context.Context, argv ...string) (ok bool, output string)
}

// ProfileSource loads stored VPN profiles for activation. Lookups are
// unscoped: tunnels are shared process-wide and the profile ID alone
// identifies one.
type ProfileSource interface {
	ProfileByIDAnyOwner(ctx context.Context, id int64) (store.VpnProfile, error)
}
