package main

// / The version number of the current azadi release. This will always
// / be "git" on trunk.
const kAzadiVersion = "0.4.0.git"
