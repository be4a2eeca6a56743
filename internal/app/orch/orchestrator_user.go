package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

func (o *Orchestrator) handleRegister(sid core.SessionID, data json.RawMessage) {
	var p struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}

	user, err := domain.NewUser(p.DisplayName)
	if err != nil {
		o.errorTo(sid, msgInvalidName)
		return
	}
	if !o.Registry.RegisterUser(sid, user) {
		// Connection vanished between read and dispatch; nothing to do.
		return
	}

	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("name", user.DisplayName).Msg("user registered")
	o.sendTo(sid, EvtRegistrationSuccess, struct {
		DisplayName string `json:"displayName"`
	}{user.DisplayName})
}
