package internaldefs

import (
	"github.com/gatehouse-auth/gatehouse"
)

// CounterDef binds one engine counter to its stable exported name.
type CounterDef struct {
	ID   gatehouse.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order. Both exporters
// iterate this table, so metric names can never drift between backends.
var CounterDefs = []CounterDef{
	{ID: gatehouse.MetricRegisterSuccess, Name: "gatehouse_register_success_total", Help: "Successful account registrations."},
	{ID: gatehouse.MetricLoginSuccess, Name: "gatehouse_login_success_total", Help: "Successful login attempts."},
	{ID: gatehouse.MetricLoginFailure, Name: "gatehouse_login_failure_total", Help: "Failed login attempts."},
	{ID: gatehouse.MetricTwoFactorRequired, Name: "gatehouse_two_factor_required_total", Help: "Logins that stopped at the second-factor challenge."},
	{ID: gatehouse.MetricTwoFactorSuccess, Name: "gatehouse_two_factor_success_total", Help: "Completed second-factor verifications."},
	{ID: gatehouse.MetricTwoFactorFailure, Name: "gatehouse_two_factor_failure_total", Help: "Rejected second-factor codes."},
	{ID: gatehouse.MetricTwoFactorCodeSent, Name: "gatehouse_two_factor_code_sent_total", Help: "Email second-factor codes dispatched."},
	{ID: gatehouse.MetricTwoFactorCodeSkipped, Name: "gatehouse_two_factor_code_skipped_total", Help: "Email second-factor dispatches skipped by the cooldown window."},
	{ID: gatehouse.MetricRecoveryCodeUsed, Name: "gatehouse_recovery_code_used_total", Help: "Recovery codes consumed in place of a second factor."},
	{ID: gatehouse.MetricRefreshSuccess, Name: "gatehouse_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: gatehouse.MetricRefreshRejected, Name: "gatehouse_refresh_rejected_total", Help: "Refresh attempts rejected, including reuse of a rotated token."},
	{ID: gatehouse.MetricAccessRevokedReject, Name: "gatehouse_access_revoked_reject_total", Help: "Access tokens rejected because their session was revoked."},
	{ID: gatehouse.MetricLogout, Name: "gatehouse_logout_total", Help: "Single-session logouts."},
	{ID: gatehouse.MetricLogoutAll, Name: "gatehouse_logout_all_total", Help: "Whole-account logouts."},
	{ID: gatehouse.MetricStepUpIssued, Name: "gatehouse_step_up_issued_total", Help: "Step-up tokens issued."},
	{ID: gatehouse.MetricStepUpDenied, Name: "gatehouse_step_up_denied_total", Help: "Step-up requests denied."},
	{ID: gatehouse.MetricVerificationSent, Name: "gatehouse_verification_sent_total", Help: "Email verification messages dispatched."},
	{ID: gatehouse.MetricPasswordResetSent, Name: "gatehouse_password_reset_sent_total", Help: "Password reset messages dispatched."},
}

// AuditDroppedName is the exported name for the audit dispatcher's drop
// counter. It lives outside CounterDefs because the value comes from the
// dispatcher, not the metrics snapshot.
const AuditDroppedName = "gatehouse_audit_dropped_total"

// AuditDroppedHelp documents the drop counter for both exporters.
const AuditDroppedHelp = "Audit events discarded under dispatcher backpressure."
