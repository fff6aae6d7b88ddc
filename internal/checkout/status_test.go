package checkout

import "testing"

func TestTransitionTable(t *testing.T) {
	all := []Status{
		StatusStarted, StatusAddressComplete, StatusShippingSelected,
		StatusPaymentPending, StatusPaymentProcessing,
		StatusCompleted, StatusExpired, StatusAbandoned,
	}

	t.Run("terminal states have no exits", func(t *testing.T) {
		for _, from := range []Status{StatusCompleted, StatusExpired, StatusAbandoned} {
			for _, to := range all {
				if CanTransition(from, to) {
					t.Errorf("%s -> %s should not be allowed", from, to)
				}
			}
		}
	})

	t.Run("active states can expire and abandon", func(t *testing.T) {
		for _, from := range all {
			if from.IsTerminal() {
				continue
			}
			if !CanTransition(from, StatusExpired) {
				t.Errorf("%s -> EXPIRED should be allowed", from)
			}
			if !CanTransition(from, StatusAbandoned) {
				t.Errorf("%s -> ABANDONED should be allowed", from)
			}
		}
	})

	t.Run("forward progression", func(t *testing.T) {
		steps := []struct {
			from, to Status
			want     bool
		}{
			{StatusStarted, StatusAddressComplete, true},
			{StatusAddressComplete, StatusShippingSelected, true},
			{StatusShippingSelected, StatusPaymentPending, true},
			{StatusPaymentPending, StatusPaymentProcessing, true},
			{StatusPaymentProcessing, StatusCompleted, true},
			// COD path: pending straight to completed
			{StatusPaymentPending, StatusCompleted, true},
			// early payment selection
			{StatusStarted, StatusPaymentPending, true},
			{StatusAddressComplete, StatusPaymentPending, true},
			// no skipping into processing or completion
			{StatusStarted, StatusPaymentProcessing, false},
			{StatusAddressComplete, StatusPaymentProcessing, false},
			{StatusStarted, StatusCompleted, false},
			{StatusShippingSelected, StatusCompleted, false},
			// no going backwards
			{StatusShippingSelected, StatusAddressComplete, false},
			{StatusPaymentPending, StatusStarted, false},
		}
		for _, s := range steps {
			if got := CanTransition(s.from, s.to); got != s.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", s.from, s.to, got, s.want)
			}
		}
	})

	t.Run("unknown status allows nothing", func(t *testing.T) {
		if CanTransition(Status("BOGUS"), StatusCompleted) {
			t.Error("unknown status should not transition")
		}
	})
}

func TestIsTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusStarted: false, StatusAddressComplete: false,
		StatusShippingSelected: false, StatusPaymentPending: false,
		StatusPaymentProcessing: false,
		StatusCompleted:         true, StatusExpired: true, StatusAbandoned: true,
	}
	for st, want := range cases {
		if st.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", st, !want, want)
		}
	}
}
