package vpn

import (
	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/ras"
)

// NewL2TPEntry returns the phonebook entry written for a new connection:
// L2TP only, pre-shared key authentication, MS-CHAPv2, encryption
// required. The server address is a placeholder; it is supplied on
// every dial.
func NewL2TPEntry(name string) *ras.Entry {
	return &ras.Entry{
		Name:        name,
		PhoneNumber: common.PlaceholderServer,
		DeviceType:  ras.DeviceTypeVPN,
		DeviceName:  ras.DeviceNameL2TP,
		Strategy:    ras.StrategyL2tpOnly,
		Encryption:  ras.EncryptionRequire,
		Options: ras.EntryOptions{
			RequireDataEncryption: true,
			UsePreSharedKey:       true,
			UseLogonCredentials:   false,
			RequireMSChap2:        true,
			RemoteDefaultGateway:  true,
			SecureFileAndPrint:    true,
			SecureClientForMSNet:  true,
			ReconnectIfDropped:    false,
		},
	}
}
