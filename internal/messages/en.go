package messages

// ─── Tasks ───────────────────────────────────────────────────────────────────

const (
	TaskAssignedTitle = "New task for you"
	TaskAssignedBody  = "You have been given the task '%s'. Complete it to earn %d points!"

	TaskCompletedTitle = "Task completed"
	TaskCompletedBody  = "%s finished the task '%s'."

	TaskExpiredTitle = "Task expired"
	TaskExpiredBody  = "The task '%s' expired before it was completed."
)

// ─── Rewards & points ────────────────────────────────────────────────────────

const (
	RewardGrantedTitle = "You earned a reward!"
	RewardGrantedBody  = "Great job! Your reward '%s' is waiting for you."

	PointsEarnedTitle = "Points earned"
	PointsEarnedBody  = "You earned %d points playing %s."
)

// ─── Payments ────────────────────────────────────────────────────────────────

const (
	OrderPaidTitle = "Payment received"
	OrderPaidBody  = "Your payment for order %s (%s) was successful."

	PaymentFailedTitle = "Payment failed"
	PaymentFailedBody  = "The payment for order %s could not be processed. Please check your payment method."
)
