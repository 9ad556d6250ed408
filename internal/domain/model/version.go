package model

// ServerVersion is announced to every client in the READY frame so the
// frontend can gate features on panel capabilities.
const ServerVersion = "0.7.2"
