/*
Package manager coordinates the shift lifecycle and staff sessions.

Check-in closes any lingering open shift for the truck, seeds the
shift's inventory snapshot from the active menu, and creates the
shift's event hub before the shift takes orders. Checkout closes the
shift record and tears the hub down. Pause and resume gate customer
submissions only; kitchen work continues on a paused shift.

The TokenManager issues random in-memory session tokens on staff
login; sessions do not survive a restart.
*/
package manager
