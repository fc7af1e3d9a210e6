package contract_test

import (
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
)

// TestSweep verifies which contracts are flagged and in what order.
func (s *ServiceSuite) TestSweep() {
	// GIVEN: a one-year fixed-term contract
	short := s.create(readyDraft())

	// and one renewed every year since 2021
	longDraft := readyDraft()
	longDraft.Document.Number = "555"
	long := s.create(longDraft)
	for _, year := range []string{"2021", "2022", "2023", "2024"} {
		_, err := s.svc.AppendPeriod(s.ctx, "hr-1", long.ID, fixedterm.Period{
			Start: d(year + "-01-01"),
			End:   d(year + "-12-31"),
		}, d("2025-01-10"), now)
		s.Require().NoError(err)
	}

	// and an indefinite one plus an archived one
	indefinite := readyDraft()
	indefinite.Document.Number = "777"
	indefinite.Type = contract.TypeIndefinite
	indefinite.EndDate = nil
	s.create(indefinite)

	archivedDraft := readyDraft()
	archivedDraft.Document.Number = "888"
	archived := s.create(archivedDraft)
	_, err := s.svc.Archive(s.ctx, "hr-1", archived.ID, now)
	s.Require().NoError(err)

	s.Run("mid-year only flags the tenure cap", func() {
		report, err := s.svc.Sweep(s.ctx, contract.ListFilter{}, d("2025-06-15"))
		s.Require().NoError(err)

		s.Equal(3, report.Checked, "archived contracts are skipped")
		s.Require().Len(report.Items, 1)
		s.Equal(long.ID, report.Items[0].Contract.ID)
		s.True(report.Items[0].MustBeIndefinite)
		s.Equal(contract.ValidityActive, report.Items[0].Validity)
	})

	s.Run("near the end flags both fixed-term contracts", func() {
		report, err := s.svc.Sweep(s.ctx, contract.ListFilter{CompanyID: "acme"}, d("2025-11-20"))
		s.Require().NoError(err)

		s.Require().Len(report.Items, 2)
		ids := []string{report.Items[0].Contract.ID, report.Items[1].Contract.ID}
		s.ElementsMatch([]string{short.ID, long.ID}, ids)
		for _, it := range report.Items {
			s.Equal(contract.ValidityAboutToExpire, it.Validity)
			s.Require().NotNil(it.DaysRemaining)
			s.Equal(41, *it.DaysRemaining)
		}
	})

	s.Run("critical contracts come first", func() {
		other := readyDraft()
		other.Document.Number = "999"
		other.EndDate = d("2025-12-01").Ptr()
		soon := s.create(other)

		report, err := s.svc.Sweep(s.ctx, contract.ListFilter{}, d("2025-11-20"))
		s.Require().NoError(err)

		s.Require().Len(report.Items, 3)
		s.Equal(soon.ID, report.Items[0].Contract.ID)
		s.Equal(contract.ValidityCritical, report.Items[0].Validity)
	})
}
