// Package dashboard serves the login, home and settings views over HTTP.
//
// Views are JSON documents describing what a front end should render. The
// router is built with chi and every protected route sits behind
// [middleware.RequireSession]. The server is also the client's
// [keynotify.Navigator], so a 401 seen by any API call moves the current view
// back to the login page.
package dashboard
