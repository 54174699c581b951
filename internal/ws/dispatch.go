package ws

import (
	"context"
	"errors"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/session"
)

// dispatch applies one request to the session. Every request that changes
// state is answered with its result followed by the new state.
func dispatch(ctx context.Context, s *session.Session, req *protocol.Request) []protocol.Response {
	if req.Type == protocol.TypePing {
		return []protocol.Response{{Type: protocol.TypePong, ID: req.ID}}
	}

	res, err := apply(ctx, s, req)
	if err != nil {
		return []protocol.Response{errorResponse(ctx, s, req, err)}
	}
	return []protocol.Response{
		protocol.Result(req.ID, res),
		{Type: protocol.TypeState, ID: req.ID, Payload: s.Snapshot()},
	}
}

func apply(ctx context.Context, s *session.Session, req *protocol.Request) (any, error) {
	switch req.Type {
	case protocol.TypeTap:
		return nil, s.Tap()

	case protocol.TypeRefresh:
		return nil, s.Refresh(ctx)

	case protocol.TypeUpgradeBoost:
		var p protocol.BoostPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		t, ok := domain.ParseBoostType(p.Type)
		if !ok {
			return nil, domain.ErrInvalidBoost
		}
		return s.UpgradeBoost(ctx, t)

	case protocol.TypeUseRocket:
		return nil, s.UseRocketBoost(ctx)

	case protocol.TypeUseFullEnergy:
		return nil, s.UseFullEnergyBoost(ctx)

	case protocol.TypeClaimDaily:
		return s.ClaimDailyReward(ctx)

	case protocol.TypeStartTask, protocol.TypeCompleteTask:
		var p protocol.TaskPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		if req.Type == protocol.TypeStartTask {
			return s.StartTask(ctx, p.TaskID)
		}
		return s.CompleteTask(ctx, p.TaskID)

	case protocol.TypeFindCombo:
		var p protocol.ComboPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return s.FindComboCard(ctx, p.Index)

	case protocol.TypeCollectHourly:
		return s.CollectHourlyEarnings(ctx)

	case protocol.TypeCollectLeague:
		reward, err := s.CollectLeagueReward(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"reward": reward}, nil

	case protocol.TypeUpgradeItem:
		var p protocol.ItemPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return s.UpgradeItem(ctx, p.ItemID)
	}
	return nil, protocol.ErrBadMessage
}

func errorResponse(ctx context.Context, s *session.Session, req *protocol.Request, err error) protocol.Response {
	var gerr *domain.GameError
	switch {
	case errors.As(err, &gerr):
		return protocol.Error(req.ID, gerr.Code, gerr.Message)
	case errors.Is(err, protocol.ErrBadMessage):
		return protocol.Error(req.ID, protocol.CodeBadRequest, err.Error())
	}
	logger.WithContext(ctx).Error("ws action failed", "user_id", s.UserID(), "type", req.Type, "error", err)
	return protocol.Error(req.ID, protocol.CodeInternal, "internal error")
}
