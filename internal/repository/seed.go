package repository

import (
	"context"
	"fmt"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/matchcode"
)

// commonNicknames seeds the given-name synonym table with frequently seen
// pairs. Deployments load their full table through the save APIs.
var commonNicknames = []domain.NicknamePair{
	{Base: "ALEXANDER", Synonym: "ALEX"},
	{Base: "ANTHONY", Synonym: "TONY"},
	{Base: "CHRISTOPHER", Synonym: "CHRIS"},
	{Base: "DANIEL", Synonym: "DAN"},
	{Base: "DANIEL", Synonym: "DANNY"},
	{Base: "ELIZABETH", Synonym: "BETH"},
	{Base: "ELIZABETH", Synonym: "LIZ"},
	{Base: "JAMES", Synonym: "JIM"},
	{Base: "JENNIFER", Synonym: "JEN"},
	{Base: "JONATHAN", Synonym: "JON"},
	{Base: "KATHERINE", Synonym: "KATE"},
	{Base: "KATHERINE", Synonym: "KATHY"},
	{Base: "MARGARET", Synonym: "MEG"},
	{Base: "MATTHEW", Synonym: "MATT"},
	{Base: "MICHAEL", Synonym: "MIKE"},
	{Base: "NICHOLAS", Synonym: "NICK"},
	{Base: "ROBERT", Synonym: "BOB"},
	{Base: "ROBERT", Synonym: "ROB"},
	{Base: "THOMAS", Synonym: "TOM"},
	{Base: "WILLIAM", Synonym: "BILL"},
	{Base: "WILLIAM", Synonym: "WILL"},
}

// SeedLookupTables populates the match-code result table from the compiled-in
// defaults and loads the starter nickname pairs. Idempotent.
func SeedLookupTables(ctx context.Context, repo domain.Repository) error {
	for code, result := range matchcode.DefaultResults() {
		if err := repo.SaveMatchCodeResult(ctx, code, result); err != nil {
			return fmt.Errorf("failed to seed match code %s: %w", code, err)
		}
	}
	for _, pair := range commonNicknames {
		if err := repo.SaveNickname(ctx, pair); err != nil {
			return fmt.Errorf("failed to seed nickname %s/%s: %w", pair.Base, pair.Synonym, err)
		}
	}
	return nil
}
