package ras

// API is the subset of the Remote Access Service the client uses.
// Implementations must be safe for concurrent use.
type API interface {
	// PhonebookPath returns the path of the phonebook file for scope.
	PhonebookPath(scope Scope) (string, error)
	// Entries returns the entry names stored in phonebook, in file order.
	Entries(phonebook string) ([]string, error)
	// ValidateEntryName returns nil if name is free to use in phonebook.
	ValidateEntryName(phonebook, name string) error
	// CreateEntry writes a new entry into phonebook.
	CreateEntry(phonebook string, entry *Entry) error
	// DeleteEntry removes an entry from phonebook.
	DeleteEntry(phonebook, name string) error
	// SetPresharedKey stores the client pre-shared key of an existing entry.
	SetPresharedKey(phonebook, name, key string) error

	// Dial starts an asynchronous dial and returns its handle. notify
	// receives every state transition until the dial completes.
	Dial(params DialParams, notify DialNotifier) (Handle, error)
	// HangUp terminates a connection and waits until the platform has
	// released the handle.
	HangUp(h Handle) error
	// ActiveConnections lists the connections currently established or dialing.
	ActiveConnections() ([]ActiveConnection, error)
	// Status returns the current state of a connection.
	Status(h Handle) (ConnState, error)
	// IPProjection returns the negotiated IP addresses of a connection.
	IPProjection(h Handle) (*IPInfo, error)
	// Watch starts delivering connect/disconnect notifications for h.
	Watch(h Handle) (Watcher, error)
}

// Watcher delivers post-connect state changes of one connection.
type Watcher interface {
	// Events returns the channel events are delivered on. It is closed
	// after Close returns or once a WatchDisconnected event was delivered.
	Events() <-chan WatchEvent
	// Close stops the watcher. It is safe to call more than once.
	Close() error
}

// FindActive returns the active connection of entryName in phonebook.
// Phonebook comparison is skipped when phonebook is empty.
func FindActive(api API, phonebook, entryName string) (*ActiveConnection, error) {
	conns, err := api.ActiveConnections()
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].EntryName != entryName {
			continue
		}
		if phonebook != "" && !SamePhonebook(conns[i].Phonebook, phonebook) {
			continue
		}
		return &conns[i], nil
	}
	return nil, nil
}

// SamePhonebook reports whether a connection reported in phonebook a
// belongs to phonebook b. An empty path matches any phonebook.
func SamePhonebook(a, b string) bool {
	return a == "" || b == "" || samePath(a, b)
}
