//go:build windows

package ras

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/BojanKomazec/IpSec/common"
)

var (
	modrasapi32 = windows.NewLazySystemDLL("rasapi32.dll")

	procRasEnumEntriesW            = modrasapi32.NewProc("RasEnumEntriesW")
	procRasValidateEntryNameW      = modrasapi32.NewProc("RasValidateEntryNameW")
	procRasSetEntryPropertiesW     = modrasapi32.NewProc("RasSetEntryPropertiesW")
	procRasDeleteEntryW            = modrasapi32.NewProc("RasDeleteEntryW")
	procRasSetCredentialsW         = modrasapi32.NewProc("RasSetCredentialsW")
	procRasDialW                   = modrasapi32.NewProc("RasDialW")
	procRasHangUpW                 = modrasapi32.NewProc("RasHangUpW")
	procRasEnumConnectionsW        = modrasapi32.NewProc("RasEnumConnectionsW")
	procRasGetConnectStatusW       = modrasapi32.NewProc("RasGetConnectStatusW")
	procRasGetProjectionInfoW      = modrasapi32.NewProc("RasGetProjectionInfoW")
	procRasConnectionNotificationW = modrasapi32.NewProc("RasConnectionNotificationW")
	procRasGetErrorStringW         = modrasapi32.NewProc("RasGetErrorStringW")
)

// Field widths from ras.h / lmcons.h, excluding the terminating NUL.
const (
	maxEntryName      = 256
	maxDeviceType     = 16
	maxDeviceName     = 128
	maxPhoneNumber    = 128
	maxCallbackNumber = 128
	maxAreaCode       = 10
	maxPadType        = 32
	maxX25Address     = 200
	maxFacilities     = 200
	maxUserData       = 200
	maxDNSSuffix      = 256
	maxIPAddress      = 15
	maxPath           = 260
	unlen             = 256
	pwlen             = 256
	dnlen             = 15
)

// RASEO_* switches.
const (
	raseoRemoteDefaultGateway  = 0x00000010
	raseoRequireEncryptedPw    = 0x00000400
	raseoRequireMsEncryptedPw  = 0x00000800
	raseoRequireDataEncryption = 0x00001000
	raseoUseLogonCredentials   = 0x00004000
	raseoRequireMsCHAP2        = 0x20000000
)

// RASEO2_* switches.
const (
	raseo2SecureFileAndPrint   = 0x00000001
	raseo2SecureClientForMSNet = 0x00000002
	raseo2DontNegotiateMulti   = 0x00000004
	raseo2UsePreSharedKey      = 0x00000010
	raseo2ReconnectIfDropped   = 0x00000100
)

const (
	rasnpIP         = 0x00000004
	rasfpPPP        = 0x00000001
	rasetVPN        = 2
	rasedmDialAll   = 1
	rascmPreShared  = 0x00000010
	raspPPPIP       = 0x8021
	rascnConnection = 0x00000001
	rascnDisconnect = 0x00000002
	notifierFunc2   = 2
)

type rasEntryName struct {
	dwSize          uint32
	szEntryName     [maxEntryName + 1]uint16
	dwFlags         uint32
	szPhonebookPath [maxPath + 1]uint16
}

type rasConn struct {
	dwSize            uint32
	hrasconn          uintptr
	szEntryName       [maxEntryName + 1]uint16
	szDeviceType      [maxDeviceType + 1]uint16
	szDeviceName      [maxDeviceName + 1]uint16
	szPhonebook       [maxPath]uint16
	dwSubEntry        uint32
	guidEntry         windows.GUID
	dwFlags           uint32
	luid              windows.LUID
	guidCorrelationID windows.GUID
}

type rasDialParams struct {
	dwSize           uint32
	szEntryName      [maxEntryName + 1]uint16
	szPhoneNumber    [maxPhoneNumber + 1]uint16
	szCallbackNumber [maxCallbackNumber + 1]uint16
	szUserName       [unlen + 1]uint16
	szPassword       [pwlen + 1]uint16
	szDomain         [dnlen + 1]uint16
	dwSubEntry       uint32
	dwCallbackID     uintptr
	dwIfIndex        uint32
}

type rasTunnelEndpoint struct {
	dwType uint32
	addr   [16]byte
}

type rasConnStatus struct {
	dwSize          uint32
	rasconnstate    uint32
	dwError         uint32
	szDeviceType    [maxDeviceType + 1]uint16
	szDeviceName    [maxDeviceName + 1]uint16
	szPhoneNumber   [maxPhoneNumber + 1]uint16
	localEndPoint   rasTunnelEndpoint
	remoteEndPoint  rasTunnelEndpoint
	rasconnsubstate uint32
}

type rasPPPIP struct {
	dwSize            uint32
	dwError           uint32
	szIPAddress       [maxIPAddress + 1]uint16
	szServerIPAddress [maxIPAddress + 1]uint16
	dwOptions         uint32
	dwServerOptions   uint32
}

type rasCredentials struct {
	dwSize     uint32
	dwMask     uint32
	szUserName [unlen + 1]uint16
	szPassword [pwlen + 1]uint16
	szDomain   [dnlen + 1]uint16
}

// rasEntry is RASENTRYW as laid out for WINVER 0x601.
type rasEntry struct {
	dwSize                     uint32
	dwfOptions                 uint32
	dwCountryID                uint32
	dwCountryCode              uint32
	szAreaCode                 [maxAreaCode + 1]uint16
	szLocalPhoneNumber         [maxPhoneNumber + 1]uint16
	dwAlternateOffset          uint32
	ipaddr                     [4]byte
	ipaddrDNS                  [4]byte
	ipaddrDNSAlt               [4]byte
	ipaddrWins                 [4]byte
	ipaddrWinsAlt              [4]byte
	dwFrameSize                uint32
	dwfNetProtocols            uint32
	dwFramingProtocol          uint32
	szScript                   [maxPath]uint16
	szAutodialDll              [maxPath]uint16
	szAutodialFunc             [maxPath]uint16
	szDeviceType               [maxDeviceType + 1]uint16
	szDeviceName               [maxDeviceName + 1]uint16
	szX25PadType               [maxPadType + 1]uint16
	szX25Address               [maxX25Address + 1]uint16
	szX25Facilities            [maxFacilities + 1]uint16
	szX25UserData              [maxUserData + 1]uint16
	dwChannels                 uint32
	dwReserved1                uint32
	dwReserved2                uint32
	dwSubEntries               uint32
	dwDialMode                 uint32
	dwDialExtraPercent         uint32
	dwDialExtraSampleSeconds   uint32
	dwHangUpExtraPercent       uint32
	dwHangUpExtraSampleSeconds uint32
	dwIdleDisconnectSeconds    uint32
	dwType                     uint32
	dwEncryptionType           uint32
	dwCustomAuthKey            uint32
	guidID                     windows.GUID
	szCustomDialDll            [maxPath]uint16
	dwVpnStrategy              uint32
	dwfOptions2                uint32
	dwfOptions3                uint32
	szDNSSuffix                [maxDNSSuffix]uint16
	dwTCPWindowSize            uint32
	szPrerequisitePbk          [maxPath]uint16
	szPrerequisiteEntry        [maxEntryName + 1]uint16
	dwRedialCount              uint32
	dwRedialPause              uint32
	ipv6addrDNS                [16]byte
	ipv6addrDNSAlt             [16]byte
	dwIPv4InterfaceMetric      uint32
	dwIPv6InterfaceMetric      uint32
	ipv6addr                   [16]byte
	dwIPv6PrefixLength         uint32
	dwNetworkOutageTime        uint32
}

func init() {
	errorText = rasErrorString
}

// Supported reports whether rasapi32.dll can be loaded.
func Supported() bool {
	return modrasapi32.Load() == nil
}

// New returns the rasapi32.dll backed API.
func New() API {
	return &winAPI{
		hangUpTimeout: common.HangUpTimeout,
		pollInterval:  common.HangUpPollInterval,
	}
}

type winAPI struct {
	hangUpTimeout time.Duration
	pollInterval  time.Duration
}

func (a *winAPI) PhonebookPath(scope Scope) (string, error) {
	appData, _ := windows.KnownFolderPath(windows.FOLDERID_RoamingAppData, windows.KF_FLAG_DEFAULT)
	programData, _ := windows.KnownFolderPath(windows.FOLDERID_ProgramData, windows.KF_FLAG_DEFAULT)
	return phonebookPath(scope, appData, programData)
}

func (a *winAPI) Entries(phonebook string) ([]string, error) {
	pbk, err := utf16PtrOrNil(phonebook)
	if err != nil {
		return nil, err
	}

	size := uint32(unsafe.Sizeof(rasEntryName{}))
	buf := make([]rasEntryName, 1)
	buf[0].dwSize = size
	cb := size
	var count uint32

	r, _, _ := procRasEnumEntriesW.Call(0, uintptr(unsafe.Pointer(pbk)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&cb)), uintptr(unsafe.Pointer(&count)))
	if uint32(r) == ErrorBufferTooSmall {
		buf = make([]rasEntryName, cb/size+1)
		for i := range buf {
			buf[i].dwSize = size
		}
		r, _, _ = procRasEnumEntriesW.Call(0, uintptr(unsafe.Pointer(pbk)),
			uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&cb)), uintptr(unsafe.Pointer(&count)))
	}
	if r != 0 {
		return nil, &Error{Op: "RasEnumEntries", Code: uint32(r)}
	}

	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		names = append(names, windows.UTF16ToString(buf[i].szEntryName[:]))
	}
	return names, nil
}

func (a *winAPI) ValidateEntryName(phonebook, name string) error {
	pbk, err := utf16PtrOrNil(phonebook)
	if err != nil {
		return err
	}
	entry, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return &Error{Op: "RasValidateEntryName", Code: ErrorInvalidName}
	}

	r, _, _ := procRasValidateEntryNameW.Call(uintptr(unsafe.Pointer(pbk)), uintptr(unsafe.Pointer(entry)))
	if r != 0 {
		return &Error{Op: "RasValidateEntryName", Code: uint32(r)}
	}
	return nil
}

func (a *winAPI) CreateEntry(phonebook string, e *Entry) error {
	pbk, err := utf16PtrOrNil(phonebook)
	if err != nil {
		return err
	}
	name, err := windows.UTF16PtrFromString(e.Name)
	if err != nil {
		return &Error{Op: "RasSetEntryProperties", Code: ErrorInvalidName}
	}

	var re rasEntry
	re.dwSize = uint32(unsafe.Sizeof(re))
	re.dwType = rasetVPN
	re.dwfNetProtocols = rasnpIP
	re.dwFramingProtocol = rasfpPPP
	re.dwDialMode = rasedmDialAll
	re.dwVpnStrategy = uint32(e.Strategy)
	re.dwEncryptionType = uint32(e.Encryption)
	re.dwfOptions = entryOptions(e.Options)
	re.dwfOptions2 = entryOptions2(e.Options)
	re.dwRedialCount = 0
	re.dwRedialPause = 60

	deviceType := e.DeviceType
	if deviceType == "" {
		deviceType = DeviceTypeVPN
	}
	deviceName := e.DeviceName
	if deviceName == "" {
		deviceName = DeviceNameL2TP
	}
	if err := copyUTF16(re.szLocalPhoneNumber[:], e.PhoneNumber); err != nil {
		return err
	}
	if err := copyUTF16(re.szDeviceType[:], deviceType); err != nil {
		return err
	}
	if err := copyUTF16(re.szDeviceName[:], deviceName); err != nil {
		return err
	}

	r, _, _ := procRasSetEntryPropertiesW.Call(uintptr(unsafe.Pointer(pbk)), uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&re)), uintptr(re.dwSize), 0, 0)
	if r != 0 {
		return &Error{Op: "RasSetEntryProperties", Code: uint32(r)}
	}
	return nil
}

func (a *winAPI) DeleteEntry(phonebook, name string) error {
	pbk, err := utf16PtrOrNil(phonebook)
	if err != nil {
		return err
	}
	entry, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return &Error{Op: "RasDeleteEntry", Code: ErrorInvalidName}
	}

	r, _, _ := procRasDeleteEntryW.Call(uintptr(unsafe.Pointer(pbk)), uintptr(unsafe.Pointer(entry)))
	if r != 0 {
		return &Error{Op: "RasDeleteEntry", Code: uint32(r)}
	}
	return nil
}

func (a *winAPI) SetPresharedKey(phonebook, name, key string) error {
	pbk, err := utf16PtrOrNil(phonebook)
	if err != nil {
		return err
	}
	entry, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return &Error{Op: "RasSetCredentials", Code: ErrorInvalidName}
	}

	var cred rasCredentials
	cred.dwSize = uint32(unsafe.Sizeof(cred))
	cred.dwMask = rascmPreShared
	if err := copyUTF16(cred.szPassword[:], key); err != nil {
		return err
	}
	defer zeroUTF16(cred.szPassword[:])

	r, _, _ := procRasSetCredentialsW.Call(uintptr(unsafe.Pointer(pbk)), uintptr(unsafe.Pointer(entry)),
		uintptr(unsafe.Pointer(&cred)), 0)
	if r != 0 {
		return &Error{Op: "RasSetCredentials", Code: uint32(r)}
	}
	return nil
}

// pendingDial is the state shared with the RasDialFunc2 callback.
type pendingDial struct {
	notify DialNotifier
	params *rasDialParams
}

var (
	dialCallbackOnce sync.Once
	dialCallback     uintptr
	dialSeq          atomic.Uint64
	dials            sync.Map // callback ID -> *pendingDial
)

// rasDialFunc2 is invoked by RAS on its own thread for every state change.
// Returning 0 stops further notifications for the dial.
func rasDialFunc2(callbackID, subEntry, hrasconn, msg, state, dwError, extendedError uintptr) uintptr {
	v, ok := dials.Load(callbackID)
	if !ok {
		return 0
	}
	pd := v.(*pendingDial)

	ev := DialEvent{Handle: Handle(hrasconn), State: ConnState(state)}
	if dwError != 0 {
		ev.Err = &Error{Op: "RasDial", Code: uint32(dwError)}
	}

	done := ev.Err != nil || ev.State.Terminal()
	if done {
		dials.Delete(callbackID)
		zeroUTF16(pd.params.szPassword[:])
	}
	pd.notify(ev)
	if done {
		return 0
	}
	return 1
}

func (a *winAPI) Dial(p DialParams, notify DialNotifier) (Handle, error) {
	dialCallbackOnce.Do(func() {
		dialCallback = windows.NewCallback(rasDialFunc2)
	})

	pbk, err := utf16PtrOrNil(p.Phonebook)
	if err != nil {
		return 0, err
	}

	params := &rasDialParams{}
	params.dwSize = uint32(unsafe.Sizeof(*params))
	for _, f := range []struct {
		dst []uint16
		src string
	}{
		{params.szEntryName[:], p.EntryName},
		{params.szPhoneNumber[:], p.PhoneNumber},
		{params.szUserName[:], p.Username},
		{params.szPassword[:], p.Password},
		{params.szDomain[:], p.Domain},
	} {
		if err := copyUTF16(f.dst, f.src); err != nil {
			return 0, err
		}
	}

	id := uintptr(dialSeq.Add(1))
	params.dwCallbackID = id
	dials.Store(id, &pendingDial{notify: notify, params: params})

	var h uintptr
	r, _, _ := procRasDialW.Call(0, uintptr(unsafe.Pointer(pbk)), uintptr(unsafe.Pointer(params)),
		notifierFunc2, dialCallback, uintptr(unsafe.Pointer(&h)))
	if r != 0 {
		dials.Delete(id)
		zeroUTF16(params.szPassword[:])
		// A handle may have been allocated even though the call failed.
		if h != 0 {
			a.HangUp(Handle(h))
		}
		return 0, &Error{Op: "RasDial", Code: uint32(r)}
	}
	return Handle(h), nil
}

func (a *winAPI) HangUp(h Handle) error {
	r, _, _ := procRasHangUpW.Call(uintptr(h))
	if r != 0 && uint32(r) != ErrorInvalidHandle && uint32(r) != ErrorNoConnection {
		return &Error{Op: "RasHangUp", Code: uint32(r)}
	}

	// The port is only released once the status call starts failing
	// with ERROR_INVALID_HANDLE.
	deadline := time.Now().Add(a.hangUpTimeout)
	for {
		var st rasConnStatus
		st.dwSize = uint32(unsafe.Sizeof(st))
		r, _, _ := procRasGetConnectStatusW.Call(uintptr(h), uintptr(unsafe.Pointer(&st)))
		if uint32(r) == ErrorInvalidHandle {
			return nil
		}
		if time.Now().After(deadline) {
			return &Error{Op: "RasHangUp", Code: ErrorRequestTimeout}
		}
		time.Sleep(a.pollInterval)
	}
}

func (a *winAPI) ActiveConnections() ([]ActiveConnection, error) {
	size := uint32(unsafe.Sizeof(rasConn{}))
	buf := make([]rasConn, 1)
	buf[0].dwSize = size
	cb := size
	var count uint32

	r, _, _ := procRasEnumConnectionsW.Call(uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&cb)), uintptr(unsafe.Pointer(&count)))
	if uint32(r) == ErrorBufferTooSmall {
		buf = make([]rasConn, cb/size+1)
		for i := range buf {
			buf[i].dwSize = size
		}
		r, _, _ = procRasEnumConnectionsW.Call(uintptr(unsafe.Pointer(&buf[0])),
			uintptr(unsafe.Pointer(&cb)), uintptr(unsafe.Pointer(&count)))
	}
	if r != 0 {
		return nil, &Error{Op: "RasEnumConnections", Code: uint32(r)}
	}

	conns := make([]ActiveConnection, 0, count)
	for i := uint32(0); i < count; i++ {
		c := &buf[i]
		conns = append(conns, ActiveConnection{
			Handle:     Handle(c.hrasconn),
			EntryName:  windows.UTF16ToString(c.szEntryName[:]),
			Phonebook:  windows.UTF16ToString(c.szPhonebook[:]),
			DeviceType: windows.UTF16ToString(c.szDeviceType[:]),
			DeviceName: windows.UTF16ToString(c.szDeviceName[:]),
		})
	}
	return conns, nil
}

func (a *winAPI) Status(h Handle) (ConnState, error) {
	var st rasConnStatus
	st.dwSize = uint32(unsafe.Sizeof(st))
	r, _, _ := procRasGetConnectStatusW.Call(uintptr(h), uintptr(unsafe.Pointer(&st)))
	if r != 0 {
		return StateDisconnected, &Error{Op: "RasGetConnectStatus", Code: uint32(r)}
	}
	if st.dwError != 0 {
		return ConnState(st.rasconnstate), &Error{Op: "RasGetConnectStatus", Code: st.dwError}
	}
	return ConnState(st.rasconnstate), nil
}

func (a *winAPI) IPProjection(h Handle) (*IPInfo, error) {
	var info rasPPPIP
	info.dwSize = uint32(unsafe.Sizeof(info))
	cb := info.dwSize
	r, _, _ := procRasGetProjectionInfoW.Call(uintptr(h), raspPPPIP,
		uintptr(unsafe.Pointer(&info)), uintptr(unsafe.Pointer(&cb)))
	if r != 0 {
		return nil, &Error{Op: "RasGetProjectionInfo", Code: uint32(r)}
	}
	if info.dwError != 0 {
		return nil, &Error{Op: "RasGetProjectionInfo", Code: info.dwError}
	}
	return &IPInfo{
		IPAddress:       net.ParseIP(windows.UTF16ToString(info.szIPAddress[:])),
		ServerIPAddress: net.ParseIP(windows.UTF16ToString(info.szServerIPAddress[:])),
	}, nil
}

func (a *winAPI) Watch(h Handle) (Watcher, error) {
	w := &winWatcher{
		api:    a,
		handle: h,
		events: make(chan WatchEvent, 4),
	}

	var err error
	if w.connected, err = windows.CreateEvent(nil, 0, 0, nil); err != nil {
		return nil, err
	}
	if w.disconnected, err = windows.CreateEvent(nil, 0, 0, nil); err != nil {
		w.closeHandles()
		return nil, err
	}
	if w.stop, err = windows.CreateEvent(nil, 1, 0, nil); err != nil {
		w.closeHandles()
		return nil, err
	}

	// Connection notifications are only raised for INVALID_HANDLE_VALUE,
	// i.e. any connection; the loop filters on the watched handle.
	r, _, _ := procRasConnectionNotificationW.Call(uintptr(windows.InvalidHandle), uintptr(w.connected), rascnConnection)
	if r != 0 {
		w.closeHandles()
		return nil, &Error{Op: "RasConnectionNotification", Code: uint32(r)}
	}
	r, _, _ = procRasConnectionNotificationW.Call(uintptr(h), uintptr(w.disconnected), rascnDisconnect)
	if r != 0 {
		w.closeHandles()
		return nil, &Error{Op: "RasConnectionNotification", Code: uint32(r)}
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

type winWatcher struct {
	api          *winAPI
	handle       Handle
	events       chan WatchEvent
	connected    windows.Handle
	disconnected windows.Handle
	stop         windows.Handle
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

func (w *winWatcher) Events() <-chan WatchEvent {
	return w.events
}

func (w *winWatcher) Close() error {
	w.closeOnce.Do(func() {
		windows.SetEvent(w.stop)
		w.wg.Wait()
		w.closeHandles()
	})
	return nil
}

func (w *winWatcher) closeHandles() {
	for _, h := range []windows.Handle{w.connected, w.disconnected, w.stop} {
		if h != 0 {
			windows.CloseHandle(h)
		}
	}
}

func (w *winWatcher) run() {
	defer w.wg.Done()
	defer close(w.events)

	handles := []windows.Handle{w.connected, w.disconnected, w.stop}
	for {
		ev, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if err != nil {
			w.send(WatchEvent{Kind: WatchError, Handle: w.handle, Err: err})
			return
		}

		switch ev - windows.WAIT_OBJECT_0 {
		case 0:
			if state, err := w.api.Status(w.handle); err == nil && state == StateConnected {
				if !w.send(WatchEvent{Kind: WatchConnected, Handle: w.handle}) {
					return
				}
			}
		case 1:
			w.send(WatchEvent{Kind: WatchDisconnected, Handle: w.handle})
			return
		default:
			return
		}
	}
}

// send delivers ev unless the watcher is being closed.
func (w *winWatcher) send(ev WatchEvent) bool {
	select {
	case w.events <- ev:
		return true
	default:
	}

	stopped, _ := windows.WaitForSingleObject(w.stop, 0)
	if stopped == windows.WAIT_OBJECT_0 {
		return false
	}
	w.events <- ev
	return true
}

func entryOptions(o EntryOptions) uint32 {
	var v uint32
	if o.RemoteDefaultGateway {
		v |= raseoRemoteDefaultGateway
	}
	if o.RequireEncryptedPassword {
		v |= raseoRequireEncryptedPw | raseoRequireMsEncryptedPw
	}
	if o.RequireDataEncryption {
		v |= raseoRequireDataEncryption
	}
	if o.UseLogonCredentials {
		v |= raseoUseLogonCredentials
	}
	if o.RequireMSChap2 {
		v |= raseoRequireMsCHAP2
	}
	return v
}

func entryOptions2(o EntryOptions) uint32 {
	v := uint32(raseo2DontNegotiateMulti)
	if o.SecureFileAndPrint {
		v |= raseo2SecureFileAndPrint
	}
	if o.SecureClientForMSNet {
		v |= raseo2SecureClientForMSNet
	}
	if o.UsePreSharedKey {
		v |= raseo2UsePreSharedKey
	}
	if o.ReconnectIfDropped {
		v |= raseo2ReconnectIfDropped
	}
	return v
}

func rasErrorString(code uint32) string {
	buf := make([]uint16, 512)
	r, _, _ := procRasGetErrorStringW.Call(uintptr(code), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return windows.UTF16ToString(buf)
	}
	if code < 600 {
		return windows.Errno(code).Error()
	}
	return ""
}

// utf16PtrOrNil converts a phonebook path; an empty path selects the
// system default phonebook.
func utf16PtrOrNil(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return nil, &Error{Op: "phonebook", Code: ErrorInvalidParameter}
	}
	return p, nil
}

// copyUTF16 writes s into a fixed NUL-terminated field.
func copyUTF16(dst []uint16, s string) error {
	u, err := windows.UTF16FromString(s)
	if err != nil || len(u) > len(dst) {
		return &Error{Op: "encode", Code: ErrorInvalidParameter}
	}
	copy(dst, u)
	return nil
}

func zeroUTF16(b []uint16) {
	for i := range b {
		b[i] = 0
	}
}
