// internal/seed/seed.go
package seed

import (
	"context"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

// SeedData loads a small demo data set for development: four users sharing a
// flat, one group, and a month of payment records. Accounts are unclaimed;
// the first login sets the login code.
func SeedData(ctx context.Context, gw gateway.Gateway) {
	existing, err := gw.Read(ctx, models.RootUsers)
	if err != nil || existing != nil {
		return
	}

	logger.L().Info("seeding development data")

	users := []models.User{
		{Mobile: "03001234567", Name: "Ahmed Khan"},
		{Mobile: "03007654321", Name: "Bilal Sheikh"},
		{Mobile: "03009876543", Name: "Danish Raza"},
		{Mobile: "03005554433", Name: "Fahad Malik"},
	}
	for _, u := range users {
		if err := gw.Write(ctx, models.UserPath(u.Mobile), u); err != nil {
			logger.L().Errorw("seed user failed", "mobile", u.Mobile, "error", err)
			return
		}
	}

	members := []models.Member{
		{Mobile: users[0].Mobile, Name: users[0].Name},
		{Mobile: users[1].Mobile, Name: users[1].Name},
		{Mobile: users[2].Mobile, Name: users[2].Name},
	}
	group := models.Group{
		ID:          models.NewGroupID(),
		Name:        "Flat 12B",
		Description: "Shared flat expenses",
		OwnerMobile: members[0].Mobile,
		Members:     members,
		CreatedAt:   models.NowISO(),
	}
	if err := gw.Write(ctx, models.GroupPath(group.ID), group); err != nil {
		logger.L().Errorw("seed group failed", "error", err)
		return
	}

	month := models.CurrentMonth()
	records := []models.Record{
		{
			Description:  "Groceries",
			Amount:       4500,
			PayerMode:    models.PayerSingle,
			Payer:        members[0].Mobile,
			Participants: []string{members[0].Mobile, members[1].Mobile, members[2].Mobile},
			SplitMode:    models.SplitEqual,
			Split: []models.SplitShare{
				{Mobile: members[0].Mobile, Name: members[0].Name, Amount: 1500},
				{Mobile: members[1].Mobile, Name: members[1].Name, Amount: 1500},
				{Mobile: members[2].Mobile, Name: members[2].Name, Amount: 1500},
			},
			WhoAdded:  members[0].Mobile,
			WhenAdded: models.NowISO(),
			Date:      models.NowISO(),
		},
		{
			Description:  "Internet bill",
			Amount:       3000,
			PayerMode:    models.PayerSingle,
			Payer:        members[1].Mobile,
			Participants: []string{members[0].Mobile, members[1].Mobile, members[2].Mobile},
			SplitMode:    models.SplitEqual,
			Split: []models.SplitShare{
				{Mobile: members[0].Mobile, Name: members[0].Name, Amount: 1000},
				{Mobile: members[1].Mobile, Name: members[1].Name, Amount: 1000},
				{Mobile: members[2].Mobile, Name: members[2].Name, Amount: 1000},
			},
			WhoAdded:  members[1].Mobile,
			WhenAdded: models.NowISO(),
			Date:      models.NowISO(),
		},
	}
	for _, r := range records {
		if _, err := gw.Append(ctx, models.MonthPath(models.RootPayments, group.ID, month), r); err != nil {
			logger.L().Errorw("seed record failed", "error", err)
			return
		}
	}

	logger.L().Infow("seeded development data", "group", group.ID, "month", month)
}
