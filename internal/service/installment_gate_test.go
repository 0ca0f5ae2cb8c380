package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/isml-edu/student-portal-api/internal/models"
)

func emiLock() *models.PlanLock {
	return &models.PlanLock{RegistrationNumber: "ISML001", PlanType: models.PlanTypeEMI, Locked: true}
}

func emiFees() models.CourseFees {
	return models.CourseFees{TotalFees: 60000, DiscountPercent: 10, Duration: 6}
}

func paidEMI(index int) models.Transaction {
	return models.Transaction{
		PaymentID:        "pay_" + string(rune('a'+index)),
		OrderID:          "order_" + string(rune('a'+index)),
		PlanType:         models.PlanTypeEMI,
		InstallmentIndex: intPtr(index),
		Status:           true,
		CreatedAt:        time.Now(),
	}
}

func TestInstallmentPeriodsFirstPayableWhenNonePaid(t *testing.T) {
	periods := InstallmentPeriods(emiFees(), emiLock(), nil)
	assert.Len(t, periods, 6)
	assert.True(t, periods[0].Payable)
	for _, p := range periods[1:] {
		assert.False(t, p.Payable, "period %d", p.Index)
	}
	// 60000 less 10 percent over 6 months
	assert.Equal(t, float64(9000), periods[0].AmountDue)
}

func TestInstallmentPeriodsOnlyNextAfterHighestPaid(t *testing.T) {
	periods := InstallmentPeriods(emiFees(), emiLock(), []models.Transaction{paidEMI(1), paidEMI(2)})
	assert.True(t, periods[0].Paid)
	assert.True(t, periods[1].Paid)
	assert.True(t, periods[2].Payable)
	assert.False(t, periods[3].Payable)
	assert.Equal(t, 3, PayableInstallment(emiFees(), emiLock(), []models.Transaction{paidEMI(1), paidEMI(2)}))
}

func TestInstallmentPeriodsGapStillAdvances(t *testing.T) {
	// index 2 missing but 3 paid: payable follows the highest paid index
	periods := InstallmentPeriods(emiFees(), emiLock(), []models.Transaction{paidEMI(1), paidEMI(3)})
	assert.False(t, periods[1].Paid)
	assert.False(t, periods[1].Payable)
	assert.True(t, periods[3].Payable)
}

func TestInstallmentPeriodsNothingPayableWhenUnlocked(t *testing.T) {
	unlocked := &models.PlanLock{RegistrationNumber: "ISML001"}
	for _, p := range InstallmentPeriods(emiFees(), unlocked, nil) {
		assert.False(t, p.Payable)
	}

	fullLock := &models.PlanLock{RegistrationNumber: "ISML001", PlanType: models.PlanTypeFull, Locked: true}
	for _, p := range InstallmentPeriods(emiFees(), fullLock, nil) {
		assert.False(t, p.Payable)
	}
}

func TestInstallmentPeriodsAllPaid(t *testing.T) {
	var txns []models.Transaction
	for i := 1; i <= 6; i++ {
		txns = append(txns, paidEMI(i))
	}
	assert.Equal(t, 0, PayableInstallment(emiFees(), emiLock(), txns))
}

func TestInstallmentPeriodsIgnoresUnconfirmedAndFullTransactions(t *testing.T) {
	unconfirmed := paidEMI(1)
	unconfirmed.Status = false
	full := models.Transaction{PaymentID: "pay_full", PlanType: models.PlanTypeFull, Status: true}

	periods := InstallmentPeriods(emiFees(), emiLock(), []models.Transaction{unconfirmed, full})
	assert.False(t, periods[0].Paid)
	assert.True(t, periods[0].Payable)
}
