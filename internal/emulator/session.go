package emulator

import (
	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
)

func (e *Emulator) isSessionActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signedIn
}

// auth signs in silently when the player authorized the game before, or
// runs the interactive flow whose outcome comes from config.
func (e *Emulator) auth(opts options) Reply {
	silent := opts.optBool("silent")

	e.mu.Lock()
	var (
		ok         bool
		userCancel bool
	)
	switch {
	case silent:
		ok = e.authorized
	case e.cfg.SignIn == config.SignInApprove:
		ok = true
	default:
		userCancel = e.cfg.SignIn == config.SignInCancel
	}
	if ok {
		e.signedIn = true
		e.authorized = true
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Info("sign in failed", "silent", silent, "user_cancel", userCancel)
		return e.send(domain.AuthFailedResponse{
			Response:   domain.NewResponse(domain.StatusSignInFailed, "SIGN IN FAILED"),
			UserCancel: userCancel,
		})
	}

	e.logger.Info("signed in", "silent", silent, "player_id", e.playerID())
	return e.send(domain.NewResponse(domain.StatusOK, "SIGN IN SUCCESS"))
}

// signOut ends the session and forgets the authorization, so the next silent
// sign-in fails. The success payload is empty.
func (e *Emulator) signOut() Reply {
	e.mu.Lock()
	e.signedIn = false
	e.authorized = false
	e.pending = nil
	e.mu.Unlock()

	e.logger.Info("signed out", "player_id", e.playerID())
	return Reply{OK: true}
}

func (e *Emulator) isSignedIn() Reply {
	signedIn := e.isSessionActive()
	msg := "Not signed in"
	if signedIn {
		msg = "Signed in"
	}
	return e.send(domain.SignedInResponse{
		Response:   domain.NewResponse(domain.StatusOK, msg),
		IsSignedIn: signedIn,
	})
}

func (e *Emulator) showPlayer() Reply {
	p := e.cfg.Player
	return e.send(domain.PlayerProfile{
		Response:          domain.NewResponse(domain.StatusOK, ""),
		DisplayName:       p.DisplayName,
		PlayerID:          p.ID,
		Title:             p.Title,
		IconImageURI:      p.IconImageURI,
		IconImageURL:      p.IconImageURL,
		HiResIconImageURI: p.HiResIconImageURI,
		HiResIconImageURL: p.HiResIconImageURL,
	})
}

func (e *Emulator) showLeaderboard(opts options) Reply {
	if _, err := opts.getString("leaderboardId"); err != nil {
		return exception(err)
	}
	return e.send(domain.NewResponse(domain.StatusOK, ""))
}
