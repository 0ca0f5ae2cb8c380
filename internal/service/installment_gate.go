package service

import "github.com/isml-edu/student-portal-api/internal/models"

// InstallmentPeriods derives the month-by-month EMI view from the fee
// structure and the confirmed transaction history. Exactly one unpaid period
// is payable at a time: the one immediately after the highest paid index, or
// the first when nothing is paid yet. When the plan is not locked to EMI,
// nothing is payable.
func InstallmentPeriods(fees models.CourseFees, lock *models.PlanLock, transactions []models.Transaction) []models.InstallmentPeriod {
	if fees.Duration <= 0 {
		return nil
	}

	paid := make(map[int]bool, fees.Duration)
	highest := 0
	for _, txn := range transactions {
		if !txn.Status || txn.PlanType != models.PlanTypeEMI || txn.InstallmentIndex == nil {
			continue
		}
		idx := *txn.InstallmentIndex
		if idx < 1 || idx > fees.Duration {
			continue
		}
		paid[idx] = true
		if idx > highest {
			highest = idx
		}
	}

	emiLocked := lock != nil && lock.Locked && lock.PlanType == models.PlanTypeEMI
	next := highest + 1
	amount := fees.InstallmentAmount()

	periods := make([]models.InstallmentPeriod, 0, fees.Duration)
	for k := 1; k <= fees.Duration; k++ {
		periods = append(periods, models.InstallmentPeriod{
			Index:     k,
			AmountDue: amount,
			Paid:      paid[k],
			Payable:   emiLocked && !paid[k] && k == next,
		})
	}
	return periods
}

// PayableInstallment returns the single payable period index, or 0 when no
// period is currently payable.
func PayableInstallment(fees models.CourseFees, lock *models.PlanLock, transactions []models.Transaction) int {
	for _, period := range InstallmentPeriods(fees, lock, transactions) {
		if period.Payable {
			return period.Index
		}
	}
	return 0
}
