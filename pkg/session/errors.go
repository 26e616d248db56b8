package session

import (
	"encoding/json"
	"net/http"

	errs "coinclicker/pkg/errors"
)

// ErrNotAuthenticated is returned by calls that need a session when none exists
var ErrNotAuthenticated = errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "not authenticated")

const (
	endpointSignIn   = "/signin"
	endpointSignUp   = "/signup"
	endpointSignOut  = "/signout"
	endpointUser     = "/user"
	endpointAddCoin  = "/add-coin"
	endpointAddCoins = "/add-coins"
)

const serverErrorMessage = "Server error. Please try again later."

// statusError turns a failed response into a typed error carrying the
// message shown to the user.
func statusError(endpoint string, status int, body []byte) error {
	var payload errorResponse
	_ = json.Unmarshal(body, &payload)
	backendMsg := payload.Error

	errorType := errs.TypeForStatus(status)
	message := fallback(backendMsg, "Request failed. Please try again.")

	switch endpoint {
	case endpointSignIn:
		switch status {
		case http.StatusBadRequest:
			message = "Username is required"
		case http.StatusNotFound:
			message = "User not found. Please check your username or sign up."
		case http.StatusInternalServerError:
			message = serverErrorMessage
		default:
			message = fallback(backendMsg, "Login failed. Please try again.")
		}
	case endpointSignUp:
		switch status {
		case http.StatusBadRequest:
			if backendMsg == "Username already exists" {
				errorType = errs.ErrorTypeConflict
				message = "This username is already taken. Please choose another one."
			} else {
				message = "Invalid input. Please check your details."
			}
		case http.StatusUnauthorized:
			message = "Authentication failed. Please try again."
		case http.StatusNotFound:
			message = "Username not found. Please check and try again."
		case http.StatusInternalServerError:
			message = serverErrorMessage
		default:
			message = fallback(backendMsg, "Signup failed. Please try again.")
		}
	case endpointUser:
		message = fallback(backendMsg, "Failed to fetch user data")
	case endpointAddCoin:
		message = fallback(backendMsg, "Failed to add coin")
	case endpointAddCoins:
		message = fallback(backendMsg, "Failed to add coins")
	}

	return errs.New(errorType, status, "%s", message)
}

func fallback(value, def string) string {
	if value != "" {
		return value
	}
	return def
}
