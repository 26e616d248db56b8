package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"coinclicker/pkg/coin"
	"coinclicker/pkg/config"
	"coinclicker/pkg/earnings"
	"coinclicker/pkg/kvstore"
	"coinclicker/pkg/session"
	"coinclicker/pkg/tasks"
)

const (
	// accountKey holds the ID of the last account that signed in on this
	// device, so its scope is known while the backend is unreachable
	accountKey = "account"

	// pendingCoinsKey holds earned coins that were not synced before exit.
	// It lives in the account scope.
	pendingCoinsKey = "pendingCoins"
)

var errUnknownAccount = errors.New("signed-in account is not known yet, connect to the backend once")

// app holds the services a command works with
type app struct {
	dataDir string
	stores  *kvstore.Stores
	session *session.Client
	user    *session.User
}

// openApp opens local storage and restores the saved session, if any. A
// backend that cannot be reached leaves the stored token in place.
func openApp(ctx context.Context) (*app, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, err
	}

	stores, err := kvstore.Open(cfg.Storage, dataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{
		dataDir: dataDir,
		stores:  stores,
		session: session.New(stores.Secrets, session.OptionsFromConfig(cfg, log)),
	}

	user, err := a.session.Restore(ctx)
	switch {
	case err == nil:
		a.rememberAccount(user)
	case errors.Is(err, session.ErrNotAuthenticated):
		a.forgetAccount()
	default:
		log.WithError(err).Warn("could not verify session, continuing offline")
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.stores.Close(); err != nil {
		log.WithError(err).Warn("failed to close storage")
	}
}

// requireAuth fails unless a session token is held
func (a *app) requireAuth() error {
	if !a.session.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}

// requireGuest fails when someone is already signed in
func (a *app) requireGuest() error {
	if !a.session.IsAuthenticated() {
		return nil
	}
	if a.user != nil {
		return fmt.Errorf("already signed in as %s, run 'coinclicker logout' first", a.user.Username)
	}
	return errors.New("already signed in, run 'coinclicker logout' first")
}

// rememberAccount makes user the owner of the account scope
func (a *app) rememberAccount(user *session.User) {
	a.user = user
	if err := a.stores.State.Set(accountKey, strconv.Itoa(user.ID)); err != nil {
		log.WithError(err).Warn("failed to remember account")
	}
}

func (a *app) forgetAccount() {
	a.user = nil
	if err := a.stores.State.Remove(accountKey); err != nil {
		log.WithError(err).Warn("failed to forget account")
	}
}

// accountStore is the part of the state store that belongs to the signed-in
// account. Unsynced coins and task claims are kept there so they never carry
// over to another account on the same device.
func (a *app) accountStore() (kvstore.Store, error) {
	id := ""
	if a.user != nil {
		id = strconv.Itoa(a.user.ID)
	} else {
		raw, ok, err := a.stores.State.Get(accountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read account: %w", err)
		}
		if !ok || raw == "" {
			return nil, errUnknownAccount
		}
		id = raw
	}
	return kvstore.WithPrefix(a.stores.State, "user."+id+"."), nil
}

// username is the display name of the signed-in user
func (a *app) username() string {
	if a.user == nil {
		return "offline"
	}
	return a.user.Username
}

// newController restores the coin button state from local storage
func (a *app) newController() *coin.Controller {
	opts := coin.OptionsFromConfig(cfg.Coin)
	opts.Logger = log

	ctrl := coin.NewController(a.stores.State, opts)
	ctrl.Initialize()
	return ctrl
}

// newBatcher creates the earnings batcher seeded with the known balance and
// any coins a previous run could not sync
func (a *app) newBatcher() *earnings.Batcher {
	b := earnings.NewBatcher(a.session, earnings.OptionsFromConfig(cfg.Earnings, log))
	if a.user != nil {
		b.SetBalance(a.user.Coins)
	}

	store, err := a.accountStore()
	if err != nil {
		log.WithError(err).Warn("unsynced coins of earlier runs are not resumed")
		return b
	}
	raw, ok, err := store.Get(pendingCoinsKey)
	if err != nil {
		log.WithError(err).Warn("failed to read unsynced coins")
		return b
	}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			b.Record(n)
			log.WithField("pending", n).Info("resuming unsynced coins")
		}
	}
	return b
}

// savePending remembers coins that are still unsynced for the next run
func (a *app) savePending(b *earnings.Batcher) {
	store, err := a.accountStore()
	if err != nil {
		log.WithError(err).WithField("pending", b.Pending()).Warn("unsynced coins are not saved")
		return
	}
	if n := b.Pending(); n > 0 {
		err = store.Set(pendingCoinsKey, strconv.Itoa(n))
	} else {
		err = store.Remove(pendingCoinsKey)
	}
	if err != nil {
		log.WithError(err).Warn("failed to save unsynced coins")
	}
}

// newTasks builds the task service over the account scope, so claims of one
// account do not block another
func (a *app) newTasks() (*tasks.Service, error) {
	store, err := a.accountStore()
	if err != nil {
		return nil, err
	}
	return tasks.NewService(store, a.session, log), nil
}
