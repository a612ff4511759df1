package authsync

// StoreAdapter narrows a CredentialStore down to what the Controller
// needs. It holds no state and adds no behavior.
type StoreAdapter struct {
	store CredentialStore
}

// NewStoreAdapter wraps store
func NewStoreAdapter(store CredentialStore) *StoreAdapter {
	return &StoreAdapter{store: store}
}

// CurrentToken returns the stored token, "" when absent
func (a *StoreAdapter) CurrentToken() string {
	return a.store.Token()
}

// CurrentIdentity returns the stored identity, nil when absent
func (a *StoreAdapter) CurrentIdentity() Identity {
	identity := a.store.Identity()
	if isAbsent(identity) {
		return nil
	}
	return identity
}

// OnChange registers listener with the underlying store
func (a *StoreAdapter) OnChange(listener ChangeListener) UnsubscribeFunc {
	return a.store.OnChange(listener)
}

// Clear empties the store. Listeners run before Clear returns.
func (a *StoreAdapter) Clear() {
	a.store.Clear()
}
