package workflow

import (
	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// groupRequestSlot maps a group-scoped kind to its field on the group
// document. Leave and join requests are lists keyed by subject mobile; the
// other kinds allow a single pending request each.
func groupRequestSlot(kind models.RequestKind) (field string, list bool, err error) {
	switch kind {
	case models.KindGroupDelete:
		return "deleteRequest", false, nil
	case models.KindGroupEdit:
		return "editRequest", false, nil
	case models.KindAddMember:
		return "addMemberRequest", false, nil
	case models.KindTransferOwnership:
		return "transferOwnershipRequest", false, nil
	case models.KindSettlement:
		return "settlementRequest", false, nil
	case models.KindLeave:
		return "leaveRequests", true, nil
	case models.KindJoin:
		return "joinRequests", true, nil
	default:
		return "", false, apperr.Validation("kind", "not a group request kind")
	}
}

func recordRequestSlot(kind models.RequestKind) (string, error) {
	switch kind {
	case models.KindRecordDelete:
		return "deleteRequest", nil
	case models.KindRecordUpdate:
		return "updateRequest", nil
	default:
		return "", apperr.Validation("kind", "not a record request kind")
	}
}

func userRequestSlot(kind models.RequestKind) (string, error) {
	switch kind {
	case models.KindUserDelete:
		return "deleteRequest", nil
	case models.KindUserUpdate:
		return "updateRequest", nil
	default:
		return "", apperr.Validation("kind", "not a user request kind")
	}
}

// requiredGroupApprovers derives the approver set for a group request from
// the group's CURRENT membership. It is never cached: members added or
// removed while the request is pending change the quorum.
func requiredGroupApprovers(g *models.Group, req *models.Request) []models.Member {
	switch req.Kind {
	case models.KindAddMember:
		// Everyone but the person being added (who is not a member yet
		// anyway, but an edit may have raced them in).
		var exclude string
		if req.NewMember != nil {
			exclude = req.NewMember.Mobile
		}
		return membersExcept(g.Members, exclude)
	case models.KindLeave:
		return membersExcept(g.Members, req.Subject)
	case models.KindGroupEdit:
		// Everyone affected: current members plus anyone being added or
		// removed, deduplicated by mobile.
		seen := make(map[string]struct{})
		var out []models.Member
		add := func(members []models.Member) {
			for _, m := range members {
				if _, ok := seen[m.Mobile]; ok {
					continue
				}
				seen[m.Mobile] = struct{}{}
				out = append(out, m)
			}
		}
		add(g.Members)
		add(req.AddedMembers)
		add(req.RemovedMembers)
		return out
	default:
		// delete, join, transfer_ownership, settlement: all current members.
		return append([]models.Member(nil), g.Members...)
	}
}

// recordParticipants resolves the record's participant set, with display
// names pulled from the split shares.
func recordParticipants(rec *models.Record) []models.Member {
	out := make([]models.Member, 0, len(rec.Participants))
	for _, mobile := range rec.Participants {
		name := mobile
		for _, s := range rec.Split {
			if s.Mobile == mobile && s.Name != "" {
				name = s.Name
			}
		}
		out = append(out, models.Member{Mobile: mobile, Name: name})
	}
	return out
}

// requiredUserApprovers resolves the explicit approver list pinned on a user
// request.
func requiredUserApprovers(req *models.Request) []models.Member {
	out := make([]models.Member, 0, len(req.RequiredApprovals))
	for _, mobile := range req.RequiredApprovals {
		out = append(out, models.Member{Mobile: mobile, Name: mobile})
	}
	return out
}

func membersExcept(members []models.Member, exclude string) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.Mobile == exclude {
			continue
		}
		out = append(out, m)
	}
	return out
}
