// Command sera is the operator CLI for the library organizer: it starts
// runs, inspects their progress and staging trees, and resolves the human
// decisions a run blocks on (detection confirmations, match reviews, and the
// final approval).
package main
